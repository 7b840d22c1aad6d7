package integration

import "context"

// conversionScope identifies the record being converted, for degradation events
type conversionScope struct {
	entityType string
	entityID   string
	recordID   string
}

type scopeKey struct{}

func withScope(ctx context.Context, scope conversionScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

func scopeFrom(ctx context.Context) conversionScope {
	if s, ok := ctx.Value(scopeKey{}).(conversionScope); ok {
		return s
	}
	return conversionScope{}
}
