package router

import "context"

type appIDKey struct{}

// SetAppID stores the authenticated app id in ctx.
func SetAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, appIDKey{}, appID)
}

// GetAppID returns the app id authenticated by the Signature middleware, or "".
func GetAppID(ctx context.Context) string {
	id, _ := ctx.Value(appIDKey{}).(string)
	return id
}
