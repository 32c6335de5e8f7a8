package auth

import "context"

// Routes the client asks the Navigator to show.
const (
	RouteLogin           = "/auth/login"
	RouteLoginRegistered = "/auth/login?registered=true"
	RouteLoginFailed     = "/auth/login?error=auth_failed"
	RouteDashboard       = "/dashboard"
)

// Navigator moves the user to another route or URL. A browser follows it; the CLI prints
// or opens it.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// NavigatorFunc adapts a function to a Navigator.
type NavigatorFunc func(ctx context.Context, target string)

func (f NavigatorFunc) Navigate(ctx context.Context, target string) {
	f(ctx, target)
}

type noopNavigator struct{}

func (noopNavigator) Navigate(context.Context, string) {}
