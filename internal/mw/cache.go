// Package mw holds HTTP middleware shared by the API server.
package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (w *bodyCacheWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *bodyCacheWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Cache serves repeated GETs on the given path prefixes from an
// in-memory store. The report endpoints are recomputed from scratch on
// every call, so a short TTL keeps polling dashboards cheap without
// visibly stale data.
func Cache(store *cache.Cache, ttl time.Duration, prefixes ...string) func(http.Handler) http.Handler {
	matches := func(path string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return len(prefixes) == 0
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || !matches(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			key := r.URL.RequestURI()
			if resp, found := store.Get(key); found {
				cached := resp.(cachedResponse)
				for k, v := range cached.headers {
					w.Header()[k] = v
				}
				w.WriteHeader(cached.status)
				w.Write(cached.body)
				return
			}
			bcw := &bodyCacheWriter{ResponseWriter: w, body: bytes.NewBuffer(nil)}
			next.ServeHTTP(bcw, r)
			// Only cache successful responses.
			if bcw.status >= 200 && bcw.status < 300 {
				store.Set(key, cachedResponse{
					status:  bcw.status,
					headers: bcw.Header().Clone(),
					body:    bcw.body.Bytes(),
				}, ttl)
			}
		})
	}
}
