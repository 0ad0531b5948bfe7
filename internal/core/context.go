package core

import "context"

type contextKey string

const (
	ctxKeyIdentity  contextKey = "identity"
	ctxKeyIPAddress contextKey = "client_ip"
)

// ContextWithIdentity stores the authenticated caller in ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext returns the caller stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

// ContextWithIPAddress adds the client IP to ctx for access-denial logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// GetIPAddressFromContext extracts the client IP from ctx.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}
