package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(s *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	s := NewServer(":0")
	s.AppendRoute("/lnurlp/{username}", func(w http.ResponseWriter, r *http.Request) {
		username, ok := Username(w, r)
		if !ok {
			return
		}
		require.NoError(t, WriteResponse(w, map[string]string{"user": username}))
	}, http.MethodGet)
	s.AppendRoute("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := serve(s, http.MethodGet, "/lnurlp/alice", map[string]string{"Origin": "https://wallet.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"alice"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = serve(s, http.MethodGet, "/lnurlp/Alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"ERROR","reason":"Invalid username"}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/nothing/here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"ERROR","reason":"Not found"}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"ERROR","reason":"Internal Server Error"}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/lnurlp/alice", map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		debug  bool
		status int
		reason string
	}{
		{zerrors.ErrUnknownRecipient, false, http.StatusNotFound, "Unknown user"},
		{zerrors.Newf(zerrors.AmountOutOfBoundsError, "Amount is too low, minimum is 1 sats"), false,
			http.StatusBadRequest, "Amount is too low, minimum is 1 sats"},
		{zerrors.Wrap(zerrors.BackendFailureError, "could not create invoice", errors.New("dial tcp: refused")), false,
			http.StatusInternalServerError, "Internal Server Error"},
		{zerrors.Wrap(zerrors.BackendFailureError, "could not create invoice", errors.New("dial tcp: refused")), true,
			http.StatusInternalServerError, "<BackendFailure>: could not create invoice (dial tcp: refused)"},
		{errors.New("plain"), false, http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, c.err, c.debug)
		assert.Equal(t, c.status, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ERROR","reason":`+strconv.Quote(c.reason)+`}`, rec.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
	req.Header.Set("X-Real-Ip", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))
}

func TestValidUsername(t *testing.T) {
	for _, ok := range []string{"alice", "bob-1", "a_b.c"} {
		assert.True(t, ValidUsername(ok), ok)
	}
	for _, bad := range []string{"", "Alice", "al ice", "al/ice", "älice"} {
		assert.False(t, ValidUsername(bad), bad)
	}
}
