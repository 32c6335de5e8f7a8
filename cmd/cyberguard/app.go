package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/internal/config"
	"github.com/jrsteele09/cyberguard-client/internal/logger"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// app is the access layer assembled for one CLI invocation.
type app struct {
	cfg        config.Config
	session    *sessions.Session
	wiring     *auth.Wiring
	controller *auth.Controller
	out        io.Writer
}

func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	level := cfg.GetLogLevel()
	if override := cmd.String("log-level"); override != "" {
		level = override
	}
	logger.Init(level, cfg.GetEnv())

	store, err := token.NewStoreFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	session, err := sessions.New(ctx, store)
	if err != nil {
		return nil, err
	}

	wiring, err := auth.NewWiring(cfg, session, httpclient.WithNetworkErrorHook(logNetworkError))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, session: session, wiring: wiring, out: os.Stdout}
	a.controller, err = auth.NewController(session, wiring.Clients,
		auth.WithRefreshManager(wiring.Refresh),
		auth.WithNavigator(auth.NavigatorFunc(a.navigate)),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// logNetworkError records each unreachable address. The user-facing connectivity message is
// printed once per command, by describe, whatever number of addresses were tried.
func logNetworkError(ne *httpclient.NetworkError) {
	log.Debug().Err(ne.Err).Str("method", ne.Method).Str("url", ne.URL).Bool("timeout", ne.Timeout()).Msg("Request could not reach server")
}

// navigate turns route changes into terminal hints.
func (a *app) navigate(_ context.Context, target string) {
	switch {
	case target == auth.RouteLogin:
		fmt.Fprintln(a.out, "You are signed out. Run `cyberguard login` to sign in.")
	case target == auth.RouteLoginRegistered:
		fmt.Fprintln(a.out, "Registration successful. Check your email, then run `cyberguard login`.")
	case target == auth.RouteLoginFailed:
		fmt.Fprintln(a.out, "Provider login failed.")
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		log.Debug().Str("url", target).Msg("navigate")
	default:
		log.Debug().Str("route", target).Msg("navigate")
	}
}

// withApp builds the app before running fn.
func withApp(fn func(ctx context.Context, cmd *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, a)
	}
}

// describe picks the message a user should see for err.
func describe(err error) string {
	var ve *auth.ValidationError
	var ae *auth.AuthError
	var re *auth.RegistrationError
	var se *httpclient.StatusError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &ae):
		return ae.Message
	case errors.As(err, &re):
		return re.Message
	case errors.Is(err, auth.ErrSessionExpired):
		return "Your session has expired. Run `cyberguard login` to sign in again."
	case errors.As(err, &se):
		return se.Message
	case httpclient.IsNetworkError(err):
		return httpclient.ConnectivityMessage
	}
	return err.Error()
}
