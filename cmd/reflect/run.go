package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"staticreflect/internal/core/app"
	"staticreflect/internal/core/config"
	"staticreflect/internal/core/errors"
	"staticreflect/internal/shared/observability"
	"staticreflect/internal/ui/cli"
	"staticreflect/internal/ui/report"
)

const VERSION = "0.3.0"

const usage = `usage: reflect [flags] <command> [args]

commands:
  class <name>...      describe classes, interfaces, traits or enums
  function <name>...   describe functions
  constant <name>...   describe global constants
  file <path>...       describe everything a file declares
  scan                 index the configured roots and print statistics
  watch                keep the index current until interrupted

flags:
`

var defaultConfigNames = []string{"staticreflect.toml", "staticreflect.yaml", "staticreflect.yml"}

type options struct {
	configPath string
	format     string
	color      string
	verbose    bool
	version    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reflect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: staticreflect.toml in the working directory)")
	fs.StringVar(&opts.format, "format", "text", "Output format: text, markdown or json")
	fs.StringVar(&opts.color, "color", "auto", "Colour text output: auto, always or never")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "reflect v%s\n", VERSION)
		return 0
	}

	logLevel := slog.LevelInfo
	if opts.verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel})))

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	command, names := fs.Arg(0), fs.Args()[1:]

	cfg, base, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
		if err != nil {
			slog.Warn("tracing disabled", "endpoint", cfg.Tracing.Endpoint, "error", err)
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					slog.Warn("failed to flush traces", "error", err)
				}
			}()
		}
	}

	a, err := app.New(cfg, app.Options{Base: base})
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	p, err := newPrinter(stdout, opts, a.Paths.ProjectRoot)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	switch command {
	case "class", "function", "constant", "file":
		if len(names) == 0 {
			fmt.Fprintf(stderr, "%s needs at least one argument\n", command)
			return 2
		}
		return describe(a, p, command, names)
	case "scan":
		stats, err := a.Scan(ctx)
		if err != nil {
			slog.Error("scan failed", "error", err)
			return 1
		}
		fmt.Fprintf(stdout, "files=%d parsed=%d reused=%d failed=%d removed=%d symbols=%d\n",
			stats.Files, stats.Parsed, stats.Reused, stats.Failed, stats.Removed, stats.Symbols)
		return 0
	case "watch":
		if err := watch(ctx, a, opts.configPath); err != nil {
			slog.Error("watch failed", "error", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n", command)
	fs.Usage()
	return 2
}

// loadConfig returns the configuration and the directory relative paths in
// it are anchored at.
func loadConfig(path string) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		for _, name := range defaultConfigNames {
			if _, err := os.Stat(filepath.Join(cwd, name)); err == nil {
				path = filepath.Join(cwd, name)
				break
			}
		}
	}
	var cfg *config.Config
	base := cwd
	if path == "" {
		cfg = config.Default()
	} else {
		if cfg, err = config.Load(path); err != nil {
			return nil, "", err
		}
		if abs, err := filepath.Abs(path); err == nil {
			base = filepath.Dir(abs)
		}
	}
	config.ApplyEnvOverrides(cfg)
	return cfg, base, nil
}

func describe(a *app.App, p *printer, command string, names []string) int {
	code := 0
	fail := func(name string, err error) {
		slog.Error("lookup failed", "kind", command, "name", name, "code", errors.CodeOf(err), "error", err)
		code = 1
	}
	for _, name := range names {
		switch command {
		case "class":
			r, err := a.DescribeClass(name)
			if err != nil {
				fail(name, err)
				continue
			}
			p.class(r)
		case "function":
			r, err := a.DescribeFunction(name)
			if err != nil {
				fail(name, err)
				continue
			}
			p.function(r)
		case "constant":
			r, err := a.DescribeConstant(name)
			if err != nil {
				fail(name, err)
				continue
			}
			p.constant(r)
		case "file":
			if err := describeFile(a, p, name); err != nil {
				fail(name, err)
			}
		}
	}
	if err := p.flush(); err != nil {
		slog.Error("failed to write output", "error", err)
		return 1
	}
	return code
}

func describeFile(a *app.App, p *printer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read file"), errors.CtxPath, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	file, err := a.Reflector().ReflectFile(abs, data)
	if err != nil {
		return err
	}
	for _, c := range file.Classes() {
		r, err := app.DescribeClass(c)
		if err != nil {
			slog.Warn("failed to describe class", "class", c.Name(), "error", err)
			continue
		}
		p.class(r)
	}
	for _, fn := range file.Functions() {
		p.function(app.DescribeFunction(fn))
	}
	for _, k := range file.Constants() {
		p.constant(app.DescribeConstant(k))
	}
	return nil
}

func watch(ctx context.Context, a *app.App, configPath string) error {
	stats, err := a.Scan(ctx)
	if err != nil {
		return err
	}
	slog.Info("initial scan finished", "files", stats.Files, "symbols", stats.Symbols)
	if err := a.StartWatcher(ctx); err != nil {
		return err
	}

	if a.Config.Metrics.Enabled {
		srv := cli.NewObservabilityServer(a.Config.Metrics.Address, app.NewHealthService(a))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
	}

	if configPath != "" {
		cw := config.NewWatcher(configPath, func(*config.Config) {
			slog.Warn("config file changed; restart to apply it", "path", configPath)
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config watching disabled", "path", configPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	<-ctx.Done()
	slog.Info("stopping", "batches", a.Changes())
	return nil
}

type printer struct {
	w      io.Writer
	format string
	text   *report.Text
	md     *report.MarkdownGenerator
	items  []any
	err    error
}

func newPrinter(w io.Writer, opts options, projectRoot string) (*printer, error) {
	p := &printer{w: w, format: strings.ToLower(opts.format)}
	switch p.format {
	case "text":
		color, err := wantColor(w, opts.color)
		if err != nil {
			return nil, err
		}
		p.text = report.NewText(w, color)
	case "markdown", "md":
		p.md = report.NewMarkdownGenerator(report.MarkdownOptions{ProjectRoot: projectRoot, Collapsible: true})
	case "json":
	default:
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}
	return p, nil
}

// wantColor enables colour for "auto" only when w is a terminal.
func wantColor(w io.Writer, mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		f, ok := w.(*os.File)
		if !ok || os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	}
	return false, fmt.Errorf("unknown colour mode %q", mode)
}

func (p *printer) class(r app.ClassReport) {
	switch {
	case p.text != nil:
		p.keep(p.text.Class(r))
	case p.md != nil:
		p.write(p.md.Class(r))
	default:
		p.items = append(p.items, r)
	}
}

func (p *printer) function(r app.FunctionReport) {
	switch {
	case p.text != nil:
		p.keep(p.text.Function(r))
	case p.md != nil:
		p.write(p.md.Function(r))
	default:
		p.items = append(p.items, r)
	}
}

func (p *printer) constant(r app.ConstantReport) {
	switch {
	case p.text != nil:
		p.keep(p.text.Constant(r))
	case p.md != nil:
		p.write(p.md.Constant(r))
	default:
		p.items = append(p.items, r)
	}
}

func (p *printer) write(s string) {
	_, err := io.WriteString(p.w, s+"\n")
	p.keep(err)
}

func (p *printer) keep(err error) {
	if p.err == nil {
		p.err = err
	}
}

// flush writes the collected JSON reports as one array.
func (p *printer) flush() error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		if p.items == nil {
			p.items = []any{}
		}
		p.keep(enc.Encode(p.items))
	}
	return p.err
}
