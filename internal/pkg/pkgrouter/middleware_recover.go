package pkgrouter

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
)

// middlewareRecoverer answers a panicking handler with a 500 in the error
// envelope and logs the route, the file or upload it touched and the
// application frames of the stack.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:err113,errorlint // the sentinel must propagate unchanged
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			params := httprouter.ParamsFromContext(r.Context())
			slog.ErrorContext(r.Context(), "panic while serving request",
				"because", rvr,
				"method", r.Method,
				"route", matchedRoutePath(r),
				"upload_id", params.ByName(uploadParam),
				"file", params.ByName("name"),
				"stack", appFrames(debug.Stack()),
			)

			writeError(w, pkgerror.NewServer(fmt.Errorf("panic: %v", rvr)))
		}()

		next.ServeHTTP(w, r)
	})
}

// appFrames keeps the file:line entries of stack that point into internal/
// packages, trimmed to start at internal/.
func appFrames(stack []byte) []string {
	var frames []string
	for _, line := range strings.Split(string(stack), "\n") {
		i := strings.Index(line, "/internal/")
		if i < 0 || !strings.Contains(line[i:], ".go:") {
			continue
		}
		frame := line[i+1:]
		if sp := strings.IndexByte(frame, ' '); sp >= 0 {
			frame = frame[:sp]
		}
		frames = append(frames, frame)
	}
	return frames
}
