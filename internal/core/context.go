package core

import "context"

type clientKey struct{}

// Client describes who issued a request, for operation logs.
type Client struct {
	IP        string
	UserAgent string
}

// WithClient attaches c to ctx.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFromContext returns the Client attached to ctx, or the zero Client.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

// logFields returns slog key/value pairs for the non-empty fields.
func (c Client) logFields() []any {
	var fields []any
	if c.IP != "" {
		fields = append(fields, "client_ip", c.IP)
	}
	if c.UserAgent != "" {
		fields = append(fields, "user_agent", c.UserAgent)
	}
	return fields
}
