package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// HandlerFunc handles an HTTP request and returns an error. A failing handler
// must not write to the response writer; the returned error is mapped to a
// JSON error response instead.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// Router wraps chi.Router with error-returning handlers. Sentinel errors can
// be mapped to HTTP status codes; unmapped errors become a 500 with a generic
// body so internal details never leak to clients.
type Router struct {
	chi.Router
	mappings []statusMapping
	logger   *slog.Logger
}

type statusMapping struct {
	target error
	code   int
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func New(opts ...Option) *Router {
	return wrap(chi.NewRouter(), opts...)
}

func wrap(chiRouter chi.Router, opts ...Option) *Router {
	r := &Router{
		Router: chiRouter,
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MapError registers a sentinel error to status code mapping. Matching is by
// errors.Is, so wrapped errors map too.
func (a *Router) MapError(target error, code int) {
	a.mappings = append(a.mappings, statusMapping{target: target, code: code})
}

// Error is a JSON-encodable API error with an explicit status code. Handlers
// may return one directly to control the response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

var internalError = Error{Code: http.StatusInternalServerError, Message: "internal server error"}

func (a *Router) mapError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range a.mappings {
		if errors.Is(err, m.target) {
			return &Error{Code: m.code, Message: err.Error()}
		}
	}
	return &internalError
}

func (a *Router) handle(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		resErr := a.mapError(err)
		if resErr.Code >= http.StatusInternalServerError {
			a.logger.Error(err.Error(), slog.String("path", r.URL.Path))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resErr.Code)
		if err := json.NewEncoder(w).Encode(resErr); err != nil {
			a.logger.Error(err.Error())
		}
	}
}

func (a *Router) Get(path string, h HandlerFunc) {
	a.Router.Get(path, a.handle(h))
}

func (a *Router) Post(path string, h HandlerFunc) {
	a.Router.Post(path, a.handle(h))
}

func (a *Router) Put(path string, h HandlerFunc) {
	a.Router.Put(path, a.handle(h))
}

func (a *Router) Delete(path string, h HandlerFunc) {
	a.Router.Delete(path, a.handle(h))
}

func (a *Router) Route(path string, f func(r *Router)) {
	a.Router.Route(path, func(r chi.Router) {
		sub := wrap(r, WithLogger(a.logger))
		sub.mappings = a.mappings
		f(sub)
	})
}

func (a *Router) Group(f func(r *Router)) {
	a.Router.Group(func(r chi.Router) {
		sub := wrap(r, WithLogger(a.logger))
		sub.mappings = a.mappings
		f(sub)
	})
}

func (a *Router) With(middleware func(http.Handler) http.Handler) *Router {
	sub := wrap(a.Router.With(middleware), WithLogger(a.logger))
	sub.mappings = a.mappings
	return sub
}

func (a *Router) Mount(pattern string, sub *Router) {
	a.Router.Mount(pattern, sub.Router)
}
