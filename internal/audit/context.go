package audit

import "context"

// Client identifies the caller of a request
type Client struct {
	IPAddress string
	UserAgent string
}

type clientKey struct{}

// WithClient stores the caller's address and user agent in ctx
func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// ClientFromContext returns the caller stored by WithClient, or the zero Client
func ClientFromContext(ctx context.Context) Client {
	client, _ := ctx.Value(clientKey{}).(Client)
	return client
}
