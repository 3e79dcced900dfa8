package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
}

func NewServer(address string) *Server {
	router := mux.NewRouter()
	router.NotFoundHandler = LoggingMiddleware("API", NotFound)
	srv := &http.Server{
		Addr:              address,
		WriteTimeout:      90 * time.Second,
		ReadTimeout:       90 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiServer := &Server{
		httpServer: srv,
		router:     router,
	}
	apiServer.httpServer.Handler = apiServer.Handler()
	return apiServer
}

// Handler is the router behind the recovery and CORS middleware. The LNURL
// endpoints are called from browser wallets, so every origin is allowed.
func (w *Server) Handler() http.Handler {
	return alice.New(RecoveryMiddleware, cors.AllowAll().Handler).Then(w.router)
}

// ListenAndServe blocks until the server is shut down.
func (w *Server) ListenAndServe() error {
	log.Infof("[api] Server started at %s", w.httpServer.Addr)
	err := w.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (w *Server) Shutdown(ctx context.Context) error {
	log.Infof("[api] Shutting down server at %s", w.httpServer.Addr)
	return w.httpServer.Shutdown(ctx)
}

func (w *Server) AppendRoute(path string, handler http.HandlerFunc, methods ...string) {
	r := w.router.HandleFunc(path, LoggingMiddleware("API", handler))
	if len(methods) > 0 {
		r.Methods(methods...)
	}
}

// AppendLimitedRoute registers handler behind an extra middleware, typically
// a rate limiter.
func (w *Server) AppendLimitedRoute(path string, limiter alice.Constructor, handler http.HandlerFunc, methods ...string) {
	r := w.router.Handle(path, alice.New(limiter).Then(LoggingMiddleware("API", handler)))
	if len(methods) > 0 {
		r.Methods(methods...)
	}
}
