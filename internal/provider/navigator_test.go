package provider

import (
	"context"
	"testing"
)

func TestNavigatorFrom(t *testing.T) {
	if _, ok := NavigatorFrom(context.Background()); ok {
		t.Fatal("expected no navigator on empty context")
	}

	var got string
	ctx := WithNavigator(context.Background(), NavigatorFunc(func(_ context.Context, url string) error {
		got = url
		return nil
	}))

	n, ok := NavigatorFrom(ctx)
	if !ok {
		t.Fatal("expected navigator on context")
	}
	if err := n.Navigate(ctx, "https://example.com/authorize"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if got != "https://example.com/authorize" {
		t.Errorf("navigated to %q", got)
	}
}

func TestError_Error(t *testing.T) {
	e := &Error{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	want := "auth provider: Invalid login credentials (invalid_credentials, status 400)"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
