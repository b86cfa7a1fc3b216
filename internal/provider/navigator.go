package provider

import "context"

// Navigator sends the user agent to url. For a browser this is a page
// navigation away from the application.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

// Navigate calls f(ctx, url).
func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

type navigatorKey struct{}

// WithNavigator returns a context carrying n. Providers prefer it over
// their default navigator, so an HTTP handler can turn the navigation
// into a redirect response.
func WithNavigator(ctx context.Context, n Navigator) context.Context {
	return context.WithValue(ctx, navigatorKey{}, n)
}

// NavigatorFrom returns the navigator carried by ctx, if any.
func NavigatorFrom(ctx context.Context) (Navigator, bool) {
	n, ok := ctx.Value(navigatorKey{}).(Navigator)
	return n, ok && n != nil
}
