// Package kit holds the transport-agnostic endpoint type shared by the HTTP
// API, the MCP tools and the connectivity handlers, plus the context keys
// that follow a call across them.
package kit

import "context"

// Endpoint is a single operation taking a decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)
