package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/auth/oauth"
	cgerrors "github.com/jrsteele09/cyberguard-client/internal/errors"
	"github.com/jrsteele09/cyberguard-client/server"
	"github.com/jrsteele09/cyberguard-client/server/authflowrepo"
	"github.com/jrsteele09/cyberguard-client/token/jwt"
	"github.com/jrsteele09/cyberguard-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in with email and password",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "prompted for when omitted"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			displayAppname(a.cfg.GetAppName())
			email, err := prompt("Email", cmd.String("email"))
			if err != nil {
				return err
			}
			password, err := prompt("Password", cmd.String("password"))
			if err != nil {
				return err
			}
			result, err := a.controller.Login(ctx, email, password)
			if err != nil {
				return err
			}
			name := email
			if result.User != nil {
				name = result.User.DisplayName()
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", name)
			return nil
		}),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "first-name"},
			&cli.StringFlag{Name: "last-name"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			req := auth.RegisterRequest{}
			var err error
			for _, field := range []struct {
				label, flag string
				dst         *string
			}{
				{"First name", "first-name", &req.FirstName},
				{"Last name", "last-name", &req.LastName},
				{"Email", "email", &req.Email},
				{"Password", "password", &req.Password},
			} {
				if *field.dst, err = prompt(field.label, cmd.String(field.flag)); err != nil {
					return err
				}
			}
			return a.controller.Register(ctx, req)
		}),
	}
}

func resetPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset-password",
		Usage: "email a password reset link",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			email, err := prompt("Email", cmd.String("email"))
			if err != nil {
				return err
			}
			if err := a.controller.RequestPasswordReset(ctx, email); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Reset link sent. Check your email for instructions.")
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "sign out and forget the stored tokens",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
			return a.controller.Logout(ctx)
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the signed in user and session token details",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "offline", Usage: "only decode the stored token"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			raw, ok := a.session.Token(ctx)
			if !ok {
				return errors.Wrap(cgerrors.ErrNoSession, "not signed in")
			}
			if claims, err := jwt.Inspect(raw); err != nil {
				log.Debug().Err(err).Msg("Session token is not a JWT")
			} else {
				fmt.Fprintf(a.out, "Subject:  %s\n", claims.Subject)
				if claims.Email != "" {
					fmt.Fprintf(a.out, "Email:    %s\n", claims.Email)
				}
				if len(claims.Roles) > 0 {
					fmt.Fprintf(a.out, "Roles:    %v\n", claims.Roles)
				}
				if !claims.ExpiresAt.IsZero() {
					state := "valid"
					if claims.Expired() {
						state = "expired"
					}
					fmt.Fprintf(a.out, "Expires:  %s (%s)\n", claims.ExpiresAt.Format(time.RFC1123), state)
				}
			}
			if cmd.Bool("offline") {
				return nil
			}
			user, err := a.controller.CurrentUser(ctx)
			if err != nil {
				return err
			}
			if user.HasRole(users.RoleAdmin) {
				fmt.Fprintln(a.out, "Administrator account")
			}
			return printJSON(a.out, user)
		}),
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "exchange the stored refresh token for a new session token",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
			if _, err := a.controller.Refresh(ctx, ""); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Session refreshed")
			return nil
		}),
	}
}

func verifyEmailCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify-email",
		Usage:     "confirm an email address, or resend the verification email with --resend",
		ArgsUsage: "<verification token>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "resend"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			if cmd.Bool("resend") {
				if err := a.controller.ResendVerification(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Verification email sent")
				return nil
			}
			if cmd.Args().Len() != 1 {
				return errors.New("verification token required")
			}
			if err := a.controller.VerifyEmail(ctx, cmd.Args().First()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Email verified")
			return nil
		}),
	}
}

func twoFactorCommand() *cli.Command {
	return &cli.Command{
		Name:  "2fa",
		Usage: "manage two-factor authentication",
		Commands: []*cli.Command{
			{
				Name:  "setup",
				Usage: "start authenticator enrolment",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
					setup, err := a.controller.SetupTwoFactor(ctx)
					if err != nil {
						return err
					}
					return printJSON(a.out, setup)
				}),
			},
			{
				Name:      "verify",
				ArgsUsage: "<6-digit code>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
					return a.controller.VerifyTwoFactor(ctx, cmd.Args().First())
				}),
			},
			{
				Name:      "disable",
				ArgsUsage: "<6-digit code>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
					return a.controller.DisableTwoFactor(ctx, cmd.Args().First())
				}),
			},
		},
	}
}

func oauthCommand() *cli.Command {
	return &cli.Command{
		Name:      "oauth",
		Usage:     "sign in through an identity provider in the browser",
		ArgsUsage: "<google|github|oidc>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			provider := cmd.Args().First()
			if provider == "" {
				return errors.New("provider required: google, github or oidc")
			}

			srv := server.New(a.cfg.GetEnv(), a.cfg.GetCallbackAddr())
			if err := srv.Listen(); err != nil {
				return err
			}

			var flow oauth.Flow
			if provider == "oidc" {
				f, err := oauth.NewOIDCFlow(ctx, oauth.OIDCSettings{
					Issuer:       a.cfg.GetOIDCIssuer(),
					ClientID:     a.cfg.GetOIDCClientID(),
					ClientSecret: a.cfg.GetOIDCClientSecret(),
					RedirectURI:  srv.CallbackURL(oauth.OIDCCallbackPath),
				}, a.controller, authflowrepo.NewInMemoryRepo(a.cfg.GetAuthFlowTimeout()))
				if err != nil {
					_ = srv.Shutdown(ctx)
					return err
				}
				flow = f
			} else {
				flow = oauth.NewBackendFlow(a.controller, auth.Provider(provider), srv.CallbackURL(oauth.BackendCallbackPath))
			}
			srv.Handle(flow)

			go func() {
				if err := srv.Serve(); err != nil {
					log.Err(err).Msg("Callback server stopped")
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Err(err).Msg("Error shutting down callback server")
				}
			}()

			authURL, err := flow.Start(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Open this URL in your browser to continue:\n\n  %s\n\n", authURL)

			waitCtx, cancel := context.WithTimeout(ctx, a.cfg.GetAuthFlowTimeout())
			defer cancel()
			result, err := srv.Wait(waitCtx)
			if err != nil {
				return err
			}
			name := "user"
			if result.User != nil {
				name = result.User.DisplayName()
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", name)
			return nil
		}),
	}
}
