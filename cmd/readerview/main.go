package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/api"
	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/mcp"
	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/reader"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsageTo(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		os.Exit(runExtract(os.Args[2:]))
	case "serve":
		os.Exit(runServe(os.Args[2:]))
	case "mcp-server":
		os.Exit(runMcpServer(os.Args[2:]))
	case "validate":
		os.Exit(runValidate(os.Args[2:]))
	case "version":
		fmt.Printf("readerview %s\n", version)
	case "-h", "--help", "help":
		printUsageTo(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsageTo(os.Stderr)
		os.Exit(1)
	}
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `readerview - Reader-mode article extraction

Usage:
  readerview <command> [options]

Commands:
  extract     Fetch a URL and write its reader view
  serve       Start the HTTP API
  mcp-server  Start MCP server for AI tool integration
  validate    Validate configuration file
  version     Show version info

Run 'readerview <command> -h' for command-specific help.`)
}

// setupLogger creates a configured logrus.Logger writing to w
func setupLogger(logLevelStr string, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// --- extract ---

type extractOptions struct {
	configPath string
	url        string
	extractor  string
	webView    bool
	markdown   bool
	noExit     bool
	out        string
	logLevel   string
	timeout    time.Duration
}

func runExtract(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	var opts extractOptions
	fs.StringVar(&opts.configPath, "config", "", "Path to config file (optional)")
	fs.StringVar(&opts.extractor, "extractor", "", "Extractor to use (mercury, readability)")
	fs.BoolVar(&opts.webView, "webview", false, "Render the page in a headless browser before extracting")
	fs.BoolVar(&opts.markdown, "markdown", false, "Write a markdown digest instead of the reader HTML")
	fs.BoolVar(&opts.noExit, "no-exit-button", false, "Omit the link back to the original page")
	fs.StringVar(&opts.out, "out", "-", "Output file or directory ('-' for stdout)")
	fs.StringVar(&opts.logLevel, "loglevel", "warn", "Log level (debug, info, warn, error)")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall time limit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: readerview extract [options] <url>\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  readerview extract https://example.com/post > post.html\n")
		fmt.Fprintf(os.Stderr, "  readerview extract -markdown -out ./articles https://example.com/post\n")
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	opts.url = fs.Arg(0)
	return doExtract(opts, os.Stdout, os.Stderr)
}

// doExtract builds the pipeline from configuration and runs one extraction.
// Returns exit code (0 = success, 1 = error).
func doExtract(opts extractOptions, stdout, stderr io.Writer) int {
	kind, err := models.ParseExtractorKind(opts.extractor)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	appCfg, warnings, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	log := setupLogger(opts.logLevel, stderr)
	for _, w := range warnings {
		log.Warn(w)
	}
	svc, err := reader.New(appCfg, logrus.NewEntry(log))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	ctx, stop := signalContext()
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	return extractTo(ctx, svc, kind, opts, stdout, stderr)
}

// extractTo runs one extraction against r and writes the output
func extractTo(ctx context.Context, r api.Reader, kind models.ExtractorKind, opts extractOptions, stdout, stderr io.Writer) int {
	readerOpts := []reader.Option{reader.WithExtractor(kind), reader.WithWebView(opts.webView)}
	if opts.noExit {
		readerOpts = append(readerOpts, reader.WithoutExitButton())
	}

	start := time.Now()
	res, err := r.FetchAndExtract(ctx, opts.url, readerOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error [%s]: %v\n", utils.CategorizeError(err), err)
		return 1
	}

	body, ext := res.StyledHTML, ".html"
	if opts.markdown {
		d, err := r.Digest(res)
		if err != nil {
			fmt.Fprintf(stderr, "Error [%s]: %v\n", utils.CategorizeError(err), err)
			return 1
		}
		body, ext = d.Markdown, ".md"
		fmt.Fprintf(stderr, "%d headings, %s tokens, %d chunks\n",
			len(d.Headings), humanize.Comma(int64(d.TokenCount)), len(d.Chunks))
	}

	dest, err := writeOutput(opts.out, outputName(res, ext), body, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "%q: %s written to %s in %s\n", res.Title(), humanize.Bytes(uint64(len(body))),
		dest, time.Since(start).Round(time.Millisecond))
	return 0
}

// outputName derives a file name from the article title, falling back to the URL host
func outputName(res *models.FetchAndExtractionResult, ext string) string {
	name := strings.TrimSpace(res.Title())
	if name == "" && res.BaseURL != nil {
		name = res.BaseURL.Hostname()
	}
	if name = utils.SanitizeFilename(name); name == "" {
		name = "article"
	}
	return name + ext
}

// writeOutput writes body to stdout, a file, or a file named name inside a directory
func writeOutput(out, name, body string, stdout io.Writer) (string, error) {
	if out == "" || out == "-" {
		_, err := io.WriteString(stdout, body)
		return "stdout", err
	}
	path := out
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		path = filepath.Join(out, name)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// --- serve ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file (optional)")
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: readerview serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, stop := signalContext()
	defer stop()
	return doServe(ctx, *configFile, *addr, *logLevel, os.Stderr)
}

// doServe runs the HTTP API until ctx is cancelled
func doServe(ctx context.Context, configPath, addr, logLevel string, stderr io.Writer) int {
	appCfg, warnings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	log := setupLogger(logLevel, stderr)
	for _, w := range warnings {
		log.Warn(w)
	}
	if addr == "" {
		addr = appCfg.Server.Addr
	}

	svc, err := reader.New(appCfg, logrus.NewEntry(log))
	if err != nil {
		log.Errorf("Failed to build reader: %v", err)
		return 1
	}
	defer svc.Close()
	svc.Start(ctx)
	if err := svc.Warmup(""); err != nil {
		log.Warnf("Warmup failed: %v", err)
	}

	if err := api.New(svc, logrus.NewEntry(log)).ListenAndServe(ctx, addr); err != nil {
		log.Errorf("Server error: %v", err)
		return 1
	}
	return 0
}

// --- mcp-server ---

func runMcpServer(args []string) int {
	fs := flag.NewFlagSet("mcp-server", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file (optional)")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	addr := fs.String("addr", ":8081", "Listen address (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: readerview mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Available MCP Tools:
  fetch_and_extract  Fetch a URL and extract its article
  extract_html       Extract an article from supplied HTML
  warmup             Start an extraction engine ahead of use
  start_extract      Start a background extraction
  get_job_status     Check a background extraction
`)
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, stop := signalContext()
	defer stop()
	return doMcpServer(ctx, *configFile, *transport, *addr, *logLevel, os.Stderr)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(ctx context.Context, configPath, transport, addr, logLevel string, stderr io.Writer) int {
	// MCP stdio uses stdout for the protocol; logs go to stderr
	log := setupLogger(logLevel, stderr)

	appCfg, warnings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	svc, err := reader.New(appCfg, logrus.NewEntry(log))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()
	svc.Start(ctx)

	srv, err := mcp.NewServer(&mcp.ServerConfig{
		Reader:    svc,
		Transport: transport,
		Addr:      addr,
		Logger:    logrus.NewEntry(log),
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}
	return 0
}

// --- validate ---

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: readerview validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return doValidate(*configFile, os.Stdout, os.Stderr)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, warnings, err := config.Load(configPath)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Configuration OK\n")
	fmt.Fprintf(stdout, "  extractor:  %s (%s sandbox)\n", appCfg.Extractor.Default, appCfg.Extractor.Sandbox)
	fmt.Fprintf(stdout, "  max body:   %s\n", humanize.Bytes(uint64(max(appCfg.Fetch.MaxBodyBytes, 0))))
	fmt.Fprintf(stdout, "  archive:    %s\n", strings.Join(appCfg.Archive.Hosts, ", "))
	fmt.Fprintf(stdout, "  rules:      %d\n", len(appCfg.Rules))
	if appCfg.Cache.Enabled {
		fmt.Fprintf(stdout, "  cache:      %s TTL\n", appCfg.Cache.TTL)
	} else {
		fmt.Fprintf(stdout, "  cache:      disabled\n")
	}
	fmt.Fprintf(stdout, "  listen:     %s\n", appCfg.Server.Addr)
	return 0
}
