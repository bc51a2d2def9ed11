package middleware

import (
	"net/http"
)

// fallbackMaxBodySize guards misconfigured limits. The real ceiling
// comes from config.MaxUploadSize, sized for ID photo uploads.
const fallbackMaxBodySize = 1 << 20

// BodyLimitMiddleware rejects oversized request bodies before any
// handler buffers them. Photo uploads and voice chunks are the only
// large payloads the portal accepts; everything else is small JSON.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = fallbackMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail fast on a declared length; MaxBytesReader still covers
		// chunked bodies that never declare one.
		if r.Body != nil && r.ContentLength > m.maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
