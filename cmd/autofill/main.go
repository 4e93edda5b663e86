// CLAUDE:SUMMARY CLI entry point for autofill: scan or fill HTML files, fill a live page, import a profile, serve the HTTP API or MCP over stdio.
// Command autofill fills web forms from a stored profile.
//
// Usage:
//
//	autofill -import-profile profile.json           # store the default profile
//	autofill -scan apply.html                       # list recognised fields
//	autofill -fill apply.html -out filled.html      # fill a static document
//	autofill -url https://boards.greenhouse.io/...  # fill a live page in Chrome
//	autofill -serve :8086                           # HTTP API + /mcp
//	autofill -mcp stdio                             # MCP over stdin/stdout
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/autofill/autofill"
	"github.com/hazyhaar/autofill/kit"
)

const version = "0.3.0"

type options struct {
	scan, fill, out, url, importProfile, serve, mcp string
	scope, siteType, profileID                      string
}

func main() {
	var o options
	configPath := flag.String("config", "", "path to autofill.yaml config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.StringVar(&o.scan, "scan", "", "list the fields of an HTML file")
	flag.StringVar(&o.fill, "fill", "", "fill an HTML file")
	flag.StringVar(&o.out, "out", "", "write the filled document here (default stdout)")
	flag.StringVar(&o.url, "url", "", "open a URL in Chrome and fill it")
	flag.StringVar(&o.importProfile, "import-profile", "", "store a profile JSON file")
	flag.StringVar(&o.serve, "serve", "", "serve the HTTP API on this address (\"-\" uses config http.addr)")
	flag.StringVar(&o.mcp, "mcp", "", "serve MCP over a transport: stdio")
	flag.StringVar(&o.scope, "scope", "", "CSS selector limiting scan/fill")
	flag.StringVar(&o.siteType, "site", "", "site type hint (workday, greenhouse, ...)")
	flag.StringVar(&o.profileID, "profile", "", "stored profile id (default: config profile_id)")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, o); err != nil {
		logger.Error("autofill: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, o options) error {
	cfg := &autofill.Config{}
	if configPath != "" {
		var err error
		if cfg, err = autofill.LoadConfigFile(configPath); err != nil {
			return err
		}
	}

	svc, err := autofill.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	// One-shot modes are tagged here. Served calls get their transport from
	// the HTTP middleware or the MCP tool registration.
	oneShot := kit.WithTransport(ctx, "cli")
	switch {
	case o.importProfile != "":
		return runImport(oneShot, svc, o)
	case o.scan != "":
		return runScan(oneShot, svc, o)
	case o.fill != "":
		return runFill(oneShot, svc, o)
	case o.url != "":
		return runURL(oneShot, svc, o)
	case o.serve != "":
		addr := o.serve
		if addr == "-" {
			addr = cfg.HTTP.Addr
		}
		return runServe(ctx, logger, svc, addr)
	case o.mcp != "":
		return runMCP(ctx, svc, o.mcp)
	}

	fmt.Fprintln(os.Stderr, "usage: autofill [-config file] -import-profile <json> | -scan <html> | -fill <html> [-out file] | -url <url> | -serve <addr> | -mcp stdio")
	os.Exit(2)
	return nil
}

func runImport(ctx context.Context, svc *autofill.Service, o options) error {
	data, err := os.ReadFile(o.importProfile)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	p, err := svc.PutProfile(ctx, o.profileID, data)
	if err != nil {
		return fmt.Errorf("import profile: %w", err)
	}
	return printJSON(map[string]any{
		"status":       "stored",
		"full_name":    p.FullName,
		"experience":   len(p.Experience),
		"projects":     len(p.Projects),
		"certificates": len(p.Licenses),
	})
}

func runScan(ctx context.Context, svc *autofill.Service, o options) error {
	data, err := os.ReadFile(o.scan)
	if err != nil {
		return fmt.Errorf("read html: %w", err)
	}
	res, err := svc.ScanHTML(ctx, autofill.ScanRequest{HTML: string(data), Scope: o.scope})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runFill(ctx context.Context, svc *autofill.Service, o options) error {
	data, err := os.ReadFile(o.fill)
	if err != nil {
		return fmt.Errorf("read html: %w", err)
	}
	res, err := svc.FillHTML(ctx, autofill.FillRequest{
		HTML:      string(data),
		Scope:     o.scope,
		SiteType:  o.siteType,
		ProfileID: o.profileID,
	})
	if err != nil {
		return err
	}
	if o.out == "" {
		fmt.Fprintln(os.Stdout, res.HTML)
	} else if err := os.WriteFile(o.out, []byte(res.HTML), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Report)
}

func runURL(ctx context.Context, svc *autofill.Service, o options) error {
	rep, err := svc.RunPage(ctx, autofill.PageRequest{URL: o.url, SiteType: o.siteType, ProfileID: o.profileID})
	if err != nil {
		return err
	}
	return printJSON(rep)
}

func runServe(ctx context.Context, logger *slog.Logger, svc *autofill.Service, addr string) error {
	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "autofill", Version: version}, nil)
	svc.RegisterMCP(mcpSrv)

	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Handler(mcpSrv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("autofill: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("autofill: server stopped")
	return nil
}

func runMCP(ctx context.Context, svc *autofill.Service, transport string) error {
	if transport != "stdio" {
		return fmt.Errorf("unsupported MCP transport %q", transport)
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: "autofill", Version: version}, nil)
	svc.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
