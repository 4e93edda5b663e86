package autofill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/autofill/autofill/internal/resolve"
	"github.com/hazyhaar/autofill/autofill/profile"
	"github.com/hazyhaar/autofill/connectivity"
)

// ResolveService is the local handler implementing the remote tier contract.
const ResolveService = "autofill_resolve"

// RegisterConnectivity registers autofill service handlers on a connectivity Router.
//
// Registered services:
//
//	autofill_resolve    remote tier contract served by the local rules
//	autofill_scan_html  field inventory of an HTML document
//	autofill_fill_html  fill an HTML document and return it
func (s *Service) RegisterConnectivity(router *connectivity.Router) {
	router.RegisterLocal(ResolveService, handleResolve)
	router.RegisterLocal("autofill_scan_html", s.handleScanHTML)
	router.RegisterLocal("autofill_fill_html", s.handleFillHTML)
}

// handleResolve answers a remote tier request with local values only. Fields
// without a value are omitted so the caller's own local tier still runs.
func handleResolve(_ context.Context, payload []byte) ([]byte, error) {
	var req RemoteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var p *profile.Profile
	if raw := bytes.TrimSpace(req.Profile); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var err error
		if p, err = profile.Parse(raw); err != nil {
			return nil, err
		}
	}

	out := make(map[string]string, len(req.Fields))
	for _, rf := range req.Fields {
		if v := resolve.Local(rf.Descriptor(), p); v != "" {
			out[rf.FieldID] = v
		}
	}
	return json.Marshal(out)
}

func (s *Service) handleScanHTML(ctx context.Context, payload []byte) ([]byte, error) {
	var req ScanRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	res, err := s.ScanHTML(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (s *Service) handleFillHTML(ctx context.Context, payload []byte) ([]byte, error) {
	var req FillRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	res, err := s.FillHTML(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}
