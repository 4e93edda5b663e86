// CLAUDE:SUMMARY Live Chrome tab as a Form Surface: element enumeration, label context via in-page JS, value writes, synthetic events.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/autofill/autofill/surface"
)

// Page is a navigated tab. It implements surface.Surface.
type Page struct {
	Page *rod.Page
	URL  string

	hijack interface{ Stop() error } // *rod.HijackRouter, nil without resource blocking

	mu       sync.Mutex
	elements rod.Elements
}

// Open creates a tab, navigates to pageURL and waits for load.
func Open(ctx context.Context, mgr *Manager, pageURL string) (*Page, error) {
	b, err := mgr.Start(ctx)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if mgr.cfg.Stealth >= LevelStealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	p := &Page{Page: page, URL: pageURL}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		router, err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
		if err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		} else {
			p.hijack = router
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return p, nil
}

// Close stops request interception, then closes the tab.
func (p *Page) Close() error {
	var errs []error
	if p.hijack != nil {
		if err := p.hijack.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("browser: stop hijack: %w", err))
		}
		p.hijack = nil
	}
	if p.Page != nil {
		if err := p.Page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HTML returns the current document as outer HTML.
func (p *Page) HTML(ctx context.Context) (string, error) {
	res, err := p.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// ListControls implements surface.Surface.
func (p *Page) ListControls(ctx context.Context) ([]surface.Ref, error) {
	els, err := p.Page.Context(ctx).Elements("input, textarea, select")
	if err != nil {
		return nil, fmt.Errorf("browser: list controls: %w", err)
	}
	p.mu.Lock()
	p.elements = els
	p.mu.Unlock()

	refs := make([]surface.Ref, len(els))
	for i := range els {
		refs[i] = surface.Ref(i)
	}
	return refs, nil
}

func (p *Page) element(ref surface.Ref) (*rod.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(ref) < 0 || int(ref) >= len(p.elements) {
		return nil, fmt.Errorf("browser: unknown control ref %d", ref)
	}
	return p.elements[ref], nil
}

// ReadAttributes implements surface.Surface.
func (p *Page) ReadAttributes(ctx context.Context, ref surface.Ref) (surface.Control, error) {
	el, err := p.element(ref)
	if err != nil {
		return surface.Control{}, err
	}
	res, err := el.Context(ctx).Eval(describeJS)
	if err != nil {
		return surface.Control{}, fmt.Errorf("browser: describe control: %w", err)
	}
	var d description
	if err := res.Value.Unmarshal(&d); err != nil {
		return surface.Control{}, fmt.Errorf("browser: decode control: %w", err)
	}
	return d.control(ref), nil
}

// WriteValue implements surface.Surface.
func (p *Page) WriteValue(ctx context.Context, ref surface.Ref, value string) (string, error) {
	el, err := p.element(ref)
	if err != nil {
		return "", err
	}
	res, err := el.Context(ctx).Eval(`(v) => { this.value = v; return this.value; }`, value)
	if err != nil {
		return "", fmt.Errorf("browser: write value: %w", err)
	}
	return res.Value.Str(), nil
}

// Dispatch implements surface.Surface.
func (p *Page) Dispatch(ctx context.Context, ref surface.Ref, events ...surface.Event) error {
	el, err := p.element(ref)
	if err != nil {
		return err
	}
	wire := make([]map[string]string, len(events))
	for i, e := range events {
		wire[i] = map[string]string{"kind": string(e.Kind), "key": e.Key}
	}
	if _, err := el.Context(ctx).Eval(dispatchJS, wire); err != nil {
		return fmt.Errorf("browser: dispatch: %w", err)
	}
	return nil
}
