package pkglog

import "context"

type chainIDContextKey struct{}

const invalidCorrelationID = "[invalid_chain_id]"

// GetCorrelationID returns the correlation ID stored in the context.
//
// HTTP middleware sets it per request; background work started from a request
// (index builds, preparation after an upload) keeps the request's value.
func GetCorrelationID(ctx context.Context) string {
	clm, ok := ctx.Value(chainIDContextKey{}).(string)
	if !ok {
		return invalidCorrelationID
	}
	return clm
}

// SetCorrelationID stores a correlation ID into the context.
func SetCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, chainIDContextKey{}, cid)
}

// Detach returns a context that keeps the correlation ID of ctx but not its
// cancellation, for work that must outlive the request that started it.
func Detach(root, ctx context.Context) context.Context {
	if cid := GetCorrelationID(ctx); cid != invalidCorrelationID {
		return SetCorrelationID(root, cid)
	}
	return root
}
