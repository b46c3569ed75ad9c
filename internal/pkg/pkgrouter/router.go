package pkgrouter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
)

// Handler is the endpoint signature used by the sampling API.
//
// The returned payload is wrapped in the success envelope; an error is
// rendered from its pkgerror code. A nil payload answers 204.
type Handler func(ctx context.Context, r *http.Request) (any, error)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that the first one runs outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Payloads may opt into a status, message or meta block in the envelope.
type (
	statusCoder interface{ StatusCode() int }
	messenger   interface{ Message() string }
	metaCarrier interface{ Meta() map[string]any }
)

// retryAfterSeconds is sent with retryable errors (out-of-order chunk, build in progress).
const retryAfterSeconds = "2"

type errorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type successResponse struct {
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Router serves the API over httprouter. Every route runs behind panic
// recovery, correlation IDs and request logging, in that order.
type Router struct {
	hr  *httprouter.Router
	mws []Middleware
}

// NewRouter builds the router with the default middleware and the banner and
// health routes. uuid mints correlation IDs for requests that carry none.
func NewRouter(uuid Generator) *Router {
	ro := &Router{
		hr: &httprouter.Router{
			RedirectTrailingSlash:  true,
			RedirectFixedPath:      true,
			HandleMethodNotAllowed: true,
			HandleOPTIONS:          true,
			SaveMatchedRoutePath:   true,
			NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, pkgerror.NewNotFound("endpoint not found"))
			}),
			MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, errorResponse{Message: "method not allowed"}, http.StatusMethodNotAllowed)
			}),
		},
		mws: []Middleware{
			middlewareRecoverer,
			middlewareCorrelationID(uuid),
			middlewareLogging,
		},
	}

	ro.Handle(http.MethodGet, "/", message("hi from gosampling"))
	ro.Handle(http.MethodGet, "/health", message("server is running well"))

	return ro
}

func message(msg string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"message": msg}, http.StatusOK)
	})
}

// Use appends middleware to the stack shared by routes registered afterwards.
func (r *Router) Use(mws ...Middleware) {
	r.mws = append(r.mws, mws...)
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

func (r *Router) PUT(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPut, path, h, mws...)
}

func (r *Router) DELETE(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodDelete, path, h, mws...)
}

// Handle registers a raw http.Handler behind the shared middleware.
func (r *Router) Handle(method, path string, h http.Handler, mws ...Middleware) {
	stack := append(append([]Middleware(nil), r.mws...), mws...)
	r.hr.Handler(method, path, Chain(h, stack...))
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	r.Handle(method, path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(req.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeResult(w, resp)
	}), mws...)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}

// writeError renders err from its pkgerror code. Anything else is a 500 whose
// cause stays out of the response.
func writeError(w http.ResponseWriter, err error) {
	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	msg := perr.Msg()
	if msg == "" {
		msg = perr.Error()
	}
	if perr.Retryable() {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	writeJSON(w, errorResponse{Message: msg, Code: perr.Code().String(), Retryable: perr.Retryable()}, perr.StatusCode())
}

func writeResult(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(statusCoder); ok {
		code = sc.StatusCode()
	}
	if resp == nil || code == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := successResponse{Message: "request has been successfully", Data: resp}
	if m, ok := resp.(messenger); ok {
		out.Message = m.Message()
	}
	if m, ok := resp.(metaCarrier); ok {
		out.Meta = m.Meta()
	}

	writeJSON(w, out, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: failed to encode data to json", "error", err)
	}
}
