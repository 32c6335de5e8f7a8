package httpclient

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Doer sends a single HTTP request. *http.Client is a Doer.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to a Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps a Doer. Middleware sees the raw *http.Response, before status handling.
type Middleware func(next Doer) Doer

// Chain wraps doer so that the first middleware is the outermost.
func Chain(doer Doer, mw ...Middleware) Doer {
	chained := doer
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// LoggingMiddleware logs every exchange at debug level.
func LoggingMiddleware(next Doer) Doer {
	return DoerFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		res, err := next.Do(req)
		event := log.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("request_id", req.Header.Get(RequestIDHeader)).
			Dur("duration", time.Since(start))
		if err != nil {
			event.Err(err).Msg("Request failed")
			return res, err
		}
		event.Int("status", res.StatusCode).Msg("Request completed")
		return res, nil
	})
}
