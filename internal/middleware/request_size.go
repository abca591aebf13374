package middleware

import (
	"net/http"
)

// Control requests carry small JSON payloads (transport commands, media
// events), so the cap can be tight.
const maxRequestSize = 64 * 1024 // 64KB

// RequestSizeLimit limits the size of request bodies
func RequestSizeLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxRequestSize {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte(`{"error":"request body too large"}`))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
		next.ServeHTTP(w, r)
	})
}
