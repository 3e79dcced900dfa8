package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/fiatjaf/go-lnurl"
	"github.com/gorilla/mux"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	log "github.com/sirupsen/logrus"
)

const (
	StatusError = "ERROR"
	StatusOk    = "OK"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9-_.]+$`)

// ValidUsername reports whether s may appear as a username in a path.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// Username returns the {username} path variable, or writes a 400 response
// and returns false if it is not a valid username.
func Username(writer http.ResponseWriter, request *http.Request) (string, bool) {
	username := mux.Vars(request)["username"]
	if !ValidUsername(username) {
		WriteError(writer, zerrors.Newf(zerrors.InvalidRequestError, "Invalid username"), false)
		return "", false
	}
	return username, true
}

func NotFound(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusNotFound, lnurl.ErrorResponse("Not found"))
}

func WriteResponse(writer http.ResponseWriter, response interface{}) error {
	return writeJSON(writer, http.StatusOK, response)
}

// WriteError writes the LNURL error body for err with the status its code
// maps to. Internal failures are always logged in full.
func WriteError(writer http.ResponseWriter, err error, debug bool) {
	code := zerrors.Code(err)
	status := code.Status()
	if status >= http.StatusInternalServerError {
		log.Errorf("[api] %v", err)
	} else {
		log.Debugf("[api] %v", err)
	}
	if werr := writeJSON(writer, status, lnurl.ErrorResponse(zerrors.Reason(err, debug))); werr != nil {
		log.Errorf("[api] could not write error response: %v", werr)
	}
}

func writeJSON(writer http.ResponseWriter, status int, response interface{}) error {
	jsonResponse, err := json.Marshal(response)
	if err != nil {
		http.Error(writer, "Internal Server Error", http.StatusInternalServerError)
		return err
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_, err = writer.Write(jsonResponse)
	return err
}
