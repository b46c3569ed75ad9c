package pkgrouter

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkglog"
)

// Generator mints correlation IDs for requests that carry none.
type Generator interface {
	Generate() string
}

const (
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is accepted from proxies that set it instead.
	HeaderRequestID = "X-Request-ID"

	uploadParam  = "upload_id"
	maxCIDLength = 128
)

// normalizeCID trims v and caps its length. Values holding control
// characters are dropped so they cannot split log lines or headers.
func normalizeCID(v string) string {
	v = strings.TrimSpace(v)
	if strings.IndexFunc(v, unicode.IsControl) >= 0 {
		return ""
	}
	if len(v) > maxCIDLength {
		v = v[:maxCIDLength]
	}
	return v
}

// correlationID takes the first usable value from the correlation header,
// the request header and the upload session in the route. Every chunk of an
// upload is logged under its session ID unless the client names its own.
func correlationID(r *http.Request) string {
	for _, v := range [...]string{
		r.Header.Get(HeaderCorrelationID),
		r.Header.Get(HeaderRequestID),
		GetParam(r.Context(), uploadParam),
	} {
		if cid := normalizeCID(v); cid != "" {
			return cid
		}
	}
	return ""
}

func middlewareCorrelationID(gen Generator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := correlationID(r)
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}

			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(pkglog.SetCorrelationID(r.Context(), cid))
			}

			next.ServeHTTP(w, r)
		})
	}
}
