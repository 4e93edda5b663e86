package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/autofill/horosafe"
)

const maxHTTPResponseBody int64 = 4 << 20

// httpConfig is the per-route config JSON.
type httpConfig struct {
	TimeoutMs   int64  `json:"timeout_ms"`
	ContentType string `json:"content_type"`
}

type httpOptions struct {
	allowPrivate bool
}

// HTTPOption configures HTTPFactory.
type HTTPOption func(*httpOptions)

// WithAllowPrivate lets routes target loopback and private addresses. The
// default remote resolver runs on localhost, so autofill enables this when
// remote.allow_private is set.
func WithAllowPrivate() HTTPOption {
	return func(o *httpOptions) { o.allowPrivate = true }
}

// HTTPFactory creates Handlers that POST the payload to the route endpoint
// and return the 2xx response body.
//
//	router.RegisterTransport("http", connectivity.HTTPFactory())
func HTTPFactory(opts ...HTTPOption) TransportFactory {
	var o httpOptions
	for _, fn := range opts {
		fn(&o)
	}

	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		if o.allowPrivate {
			if _, err := horosafe.ValidateScheme(endpoint); err != nil {
				return nil, nil, fmt.Errorf("connectivity/http: %w", err)
			}
		} else if err := horosafe.ValidateURL(endpoint); err != nil {
			return nil, nil, fmt.Errorf("connectivity/http: %w", err)
		}

		var cfg httpConfig
		if len(config) > 0 {
			_ = json.Unmarshal(config, &cfg)
		}

		timeout := 30 * time.Second
		if cfg.TimeoutMs > 0 {
			timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		contentType := "application/json"
		if cfg.ContentType != "" {
			contentType = cfg.ContentType
		}

		client := &http.Client{Timeout: timeout}

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := horosafe.LimitedReadAll(resp.Body, maxHTTPResponseBody)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &ErrRemoteStatus{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body)}
			}
			return body, nil
		}

		return handler, client.CloseIdleConnections, nil
	}
}
