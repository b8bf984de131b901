package http

import (
	"mime"
	"net/http"

	"github.com/dev-emon1/shoppers-link/pkg/httputil"
	"github.com/dev-emon1/shoppers-link/pkg/middleware"
)

// RequireContentType rejects request bodies whose Content-Type is not one of
// types. Requests without a body pass through.
func RequireContentType(types ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength != 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				if ct := r.Header.Get("Content-Type"); ct != "" {
					mt, _, err := mime.ParseMediaType(ct)
					if err != nil || !allowed[mt] {
						httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
							Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "unsupported Content-Type " + ct},
						})
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeJSON only accepts JSON bodies.
var ContentTypeJSON = RequireContentType("application/json")

// owner returns the request owner. Routes using it are mounted behind
// middleware.RequireOwner.
func owner(r *http.Request) middleware.Owner {
	o, _ := middleware.OwnerFromContext(r.Context())
	return o
}
