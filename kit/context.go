package kit

import "context"

// Call describes the request an endpoint is serving. Endpoints never branch
// on it; it feeds logging.
type Call struct {
	Transport string // "http" or "mcp"
	RequestID string
	SessionID string // store session the request targets, if any
}

type callKey struct{}

// WithCall attaches c to ctx.
func WithCall(ctx context.Context, c Call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

// CallFrom returns the Call attached to ctx. Transport defaults to "http".
func CallFrom(ctx context.Context) Call {
	c, _ := ctx.Value(callKey{}).(Call)
	if c.Transport == "" {
		c.Transport = "http"
	}
	return c
}

// SessionScoped is implemented by requests that target one store session.
type SessionScoped interface {
	Session() string
}

// withSession records the session of req, when it has one.
func withSession(ctx context.Context, req any) context.Context {
	s, ok := req.(SessionScoped)
	if !ok || s.Session() == "" {
		return ctx
	}
	c := CallFrom(ctx)
	c.SessionID = s.Session()
	return WithCall(ctx, c)
}
