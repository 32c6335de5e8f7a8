package server

import (
	"html/template"
	"net/http"

	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/auth/oauth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>CyberGuard</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
</body>
</html>
`))

type callbackView struct {
	Title   string
	Message string
}

func (s *Server) callbackHandler(flow oauth.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.consume(r.URL.Path) {
			renderCallback(w, http.StatusGone, callbackView{
				Title:   "Link already used",
				Message: "This login callback has already been processed. You can close this window.",
			})
			return
		}

		result, err := flow.Complete(r.Context(), r.URL.Query())
		s.publish(Result{Login: result, Err: err})
		if err != nil {
			log.Err(err).Str("path", r.URL.Path).Msg("Provider login failed")
			msg := "Login failed. Please try again."
			var authErr *auth.AuthError
			if errors.As(err, &authErr) && authErr.Message != "" {
				msg = authErr.Message
			}
			renderCallback(w, http.StatusUnauthorized, callbackView{Title: "Login failed", Message: msg})
			return
		}

		renderCallback(w, http.StatusOK, callbackView{
			Title:   "Login complete",
			Message: "You are signed in to CyberGuard. You can close this window and return to the terminal.",
		})
	}
}

func renderCallback(w http.ResponseWriter, status int, view callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, view); err != nil {
		log.Err(err).Msg("Error rendering callback page")
	}
}
