// Command dombind binds controllers to the elements of an HTML file or a
// live page, records them to the configured sinks, and keeps binding as
// matching elements appear.
//
// Usage:
//
//	dombind -config dombind.yaml                    # binders, sinks and source from YAML
//	dombind -config - < dombind.yaml                # same, config on stdin
//	dombind -file page.html -selector .card -once   # one scan, events on stdout
//	dombind -url https://example.com -selector .card
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/controller"
	"github.com/hazyhaar/dombind/bindable/htmldoc"
	"github.com/hazyhaar/dombind/bindable/rodpage"
)

const version = "0.1.0"

type flags struct {
	config   string
	file     string
	url      string
	selector string
	addr     string
	once     bool
	stdin    io.Reader // read by -config -
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to dombind.yaml config file, or - for stdin")
	flag.StringVar(&f.file, "file", "", "bind an HTML file")
	flag.StringVar(&f.url, "url", "", "bind a live page in Chrome")
	flag.StringVar(&f.selector, "selector", "", "CSS selector of a single recording binder")
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides http.addr)")
	flag.BoolVar(&f.once, "once", false, "scan once and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()
	f.stdin = os.Stdin

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

	if err := run(ctx, logger, f); err != nil {
		logger.Error("dombind: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	out, history, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	doc, pageURL, closeDoc, err := openDocument(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDoc()

	reg, err := buildRegistry(cfg, doc, pageURL, out, logger)
	if err != nil {
		return err
	}

	if _, err := reg.BindAll(ctx); err != nil {
		logger.Error("dombind: initial scan", "error", err)
	}

	if f.once {
		return render(cfg, doc)
	}

	for _, bc := range cfg.Binders {
		if !bc.Observe {
			continue
		}
		sc, _ := reg.Get(bc.Name)
		sub, err := sc.Observe(ctx, nil)
		if err != nil {
			return err
		}
		defer sub.Close()
	}

	if cfg.HTTP.Addr != "" {
		srv := newServer(cfg.HTTP.Addr, reg, history, logger)
		go func() {
			logger.Info("dombind: http listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("dombind: http", "error", err)
				cancel()
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	logger.Info("dombind: running", "binders", reg.Names(), "page", pageURL)
	<-ctx.Done()
	return render(cfg, doc)
}

func loadConfig(f flags) (*bindable.FileConfig, error) {
	cfg := &bindable.FileConfig{}
	switch {
	case f.config == "-":
		if f.stdin == nil {
			return nil, errors.New("load config: no stdin")
		}
		data, err := io.ReadAll(f.stdin)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if cfg, err = bindable.ParseConfig(data); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	case f.config != "":
		var err error
		if cfg, err = bindable.LoadConfigFile(f.config); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	switch {
	case f.file != "":
		cfg.Source = bindable.SourceConfig{Kind: "file", Path: f.file}
	case f.url != "":
		cfg.Source = bindable.SourceConfig{Kind: "url", URL: f.url}
	}
	if f.selector != "" {
		cfg.Binders = append(cfg.Binders, bindable.BinderConfig{
			Name:     "selector",
			Selector: f.selector,
			Observe:  !f.once,
		})
	}
	if f.addr != "" {
		cfg.HTTP.Addr = f.addr
	}

	if cfg.Source.Path == "" && cfg.Source.URL == "" {
		return nil, errors.New("usage: dombind -config <file> | -file <html> | -url <url> [-selector <css>]")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSinks(cfg *bindable.FileConfig, logger *slog.Logger) (bindable.Sink, bindable.ScanHistory, error) {
	var (
		sinks   []bindable.Sink
		history bindable.ScanHistory
	)
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, bindable.NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, bindable.NewWebhookSink(sc.URL, logger))
		case "sqlite":
			s, err := bindable.OpenSQLiteSink(sc.Path, sc.BusyTimeout)
			if err != nil {
				return nil, nil, err
			}
			sinks = append(sinks, s)
			if history == nil {
				history = s
			}
		}
	}
	return bindable.NewRouter(logger, sinks...), history, nil
}

func openDocument(ctx context.Context, cfg *bindable.FileConfig, logger *slog.Logger) (bindable.Document, string, func(), error) {
	if cfg.Source.Kind == "file" {
		fh, err := os.Open(cfg.Source.Path)
		if err != nil {
			return nil, "", nil, err
		}
		defer fh.Close()
		doc, err := htmldoc.Parse(fh,
			htmldoc.WithLogger(logger),
			htmldoc.WithDebounce(cfg.Debounce.Delay(), cfg.Debounce.MaxBuffer))
		if err != nil {
			return nil, "", nil, err
		}
		abs, _ := filepath.Abs(cfg.Source.Path)
		return doc, "file://" + abs, func() {}, nil
	}

	mgr := rodpage.NewManager(rodpage.ManagerConfig{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          !*cfg.Browser.Headless,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		NavTimeout:       cfg.Browser.Timeout,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, "", nil, err
	}
	tab, err := rodpage.Open(ctx, mgr, cfg.Source.URL,
		rodpage.WithLogger(logger),
		rodpage.WithDebounce(cfg.Debounce.Delay(), cfg.Debounce.MaxBuffer))
	if err != nil {
		mgr.Close()
		return nil, "", nil, err
	}
	return tab, cfg.Source.URL, func() {
		tab.Close()
		mgr.Close()
	}, nil
}

func buildRegistry(cfg *bindable.FileConfig, doc bindable.Document, pageURL string, out bindable.Sink, logger *slog.Logger) (*bindable.Registry, error) {
	opts := []bindable.Option{
		bindable.WithLogger(logger),
		bindable.WithScanHook(bindable.SinkScans(out, logger)),
	}

	reg, _ := bindable.NewRegistry()
	for _, bc := range cfg.Binders {
		var (
			sc  bindable.Scanner
			err error
		)
		switch bc.Controller {
		case "stamp":
			st := &controller.Stamper{Require: bc.Require, Attrs: bc.Attrs}
			sc, err = bindable.New(doc, bindable.ConfigFor(bc), st.Factory(), opts...)
		default:
			rec := controller.NewRecorder(controller.RecorderConfig{
				Binder:   bc.Name,
				Selector: bc.Selector,
				PageURL:  pageURL,
				Emitter:  out,
				Logger:   logger,
			})
			sc, err = bindable.New(doc, bindable.ConfigFor(bc), rec.Factory(), opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("binder %s: %w", bc.Name, err)
		}
		if err := reg.Register(sc); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newServer(addr string, reg *bindable.Registry, history bindable.ScanHistory, logger *slog.Logger) *http.Server {
	opts := []bindable.ServiceOption{bindable.WithServiceLogger(logger)}
	if history != nil {
		opts = append(opts, bindable.WithHistory(history))
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "dombind", Version: version}, nil)
	bindable.RegisterMCP(mcpSrv, reg, opts...)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	mux.Handle("/", bindable.Handler(reg, opts...))

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}

// render writes the bound HTML to cfg.Output for file sources.
func render(cfg *bindable.FileConfig, doc bindable.Document) error {
	hd, ok := doc.(*htmldoc.Document)
	if cfg.Output == "" || !ok {
		return nil
	}
	fh, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := hd.Render(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
