package auth

import (
	"context"
	"io"
	"net/http"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/rs/zerolog/log"
)

// Refresher mints a Session Token newer than the rejected one.
type Refresher interface {
	Refresh(ctx context.Context, rejected string) (string, error)
}

// Interceptor attaches the Session Token to outgoing requests and reacts to 401 responses.
//
// A 401 gets at most one silent refresh followed by one replay of the request. When that is not
// possible, or the replay is rejected too, the session is expired and the call fails with
// ErrSessionExpired. Any other status passes through untouched.
type Interceptor struct {
	session   *sessions.Session
	refresher Refresher
}

// NewInterceptor creates an interceptor for session. refresher may be nil, in which case every 401
// ends the session.
func NewInterceptor(session *sessions.Session, refresher Refresher) *Interceptor {
	return &Interceptor{session: session, refresher: refresher}
}

// Middleware is the httpclient.Middleware form of the interceptor.
func (i *Interceptor) Middleware(next httpclient.Doer) httpclient.Doer {
	return httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
		// Explicit credentials belong to the caller
		if req.Header.Get("Authorization") != "" {
			return next.Do(req)
		}

		ctx := req.Context()
		sessionToken, hasToken := i.session.Token(ctx)
		if hasToken {
			req.Header.Set("Authorization", "Bearer "+sessionToken)
		}

		res, err := next.Do(req)
		if err != nil || res.StatusCode != http.StatusUnauthorized {
			return res, err
		}
		discard(res)

		if hasToken && i.refresher != nil {
			replayed, err := i.retry(req, sessionToken, next)
			if err != nil {
				return nil, err
			}
			if replayed != nil {
				return replayed, nil
			}
		}

		log.Warn().Str("path", req.URL.Path).Msg("Authentication failed, ending session")
		i.session.Expire(ctx)
		return nil, ErrSessionExpired
	})
}

// retry refreshes the token and replays req once. A nil response with a nil error means the
// session cannot be saved.
func (i *Interceptor) retry(req *http.Request, rejected string, next httpclient.Doer) (*http.Response, error) {
	ctx := req.Context()
	fresh, err := i.refresher.Refresh(ctx, rejected)
	if err != nil {
		log.Err(err).Msg("Silent token refresh failed")
		return nil, nil
	}

	replay := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			log.Warn().Str("path", req.URL.Path).Msg("Request body cannot be replayed")
			return nil, nil
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+fresh)

	res, err := next.Do(replay)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusUnauthorized {
		discard(res)
		return nil, nil
	}
	return res, nil
}

func discard(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
