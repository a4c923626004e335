package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/catalog"
	"github.com/fmpsc/spa/app/config"
	"github.com/fmpsc/spa/app/export"
	"github.com/fmpsc/spa/app/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "server":
		runServer()
	case "export":
		runExport()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: spa <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  server        Start the dashboard server")
	fmt.Fprintln(os.Stderr, "  export        Render a Plotly figure or a saved chart to PNG")
}

func setLogLevel(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		slog.Warn("unknown log level, using info", "level", level)
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func loadConfig(dataDir string) *config.DashboardConfig {
	conf, err := config.Load(context.Background(), dataDir)
	if err != nil {
		slog.Error("error while loading config", "err", err)
		os.Exit(1)
	}
	setLogLevel(conf.LogLevel)
	return conf
}

func openCatalog(dataDir string, readonly bool) (*catalog.SQLiteStore, error) {
	db, err := catalog.NewSQLiteDB(dataDir, readonly)
	if err != nil {
		return nil, err
	}
	store := catalog.NewSQLiteStore(db)
	if !readonly {
		if err := store.Init(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func runServer() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	var serverConf config.ServerRuntimeConfig
	var dataDir string
	flags.StringVarP(&serverConf.Addr, "address", "a", "localhost", "Server address to bind")
	flags.IntVarP(&serverConf.Port, "port", "p", 8080, "Server port to bind")
	flags.StringVarP(&dataDir, "data-dir", "d", os.Getenv("SPA_DATA_DIR"),
		"data directory holding config.json and the catalog database")
	flags.StringVar(&serverConf.CertDir, "cert-dir", "", "directory with TLS certificates, enables HTTPS")
	flags.BoolVar(&serverConf.AcmeEnabled, "acme", false, "obtain certificates with ACME into --cert-dir")
	flags.BoolVar(&serverConf.BehindLoadBalancer, "behind-lb", false, "trust X-Forwarded-For for client addresses")
	flags.IntVar(&serverConf.RateLimit, "rate-limit", 0, "requests per second per client, 0 to disable")
	flags.IntVar(&serverConf.GzipLevel, "gzip-level", 0, "gzip compression level, 0 to disable")

	flags.Parse(os.Args[2:])

	if dataDir == "" {
		slog.Error("--data-dir not provided, stopping")
		os.Exit(1)
	}
	if serverConf.AcmeEnabled && serverConf.CertDir == "" {
		slog.Error("--acme needs --cert-dir")
		os.Exit(1)
	}
	conf := loadConfig(dataDir)

	store, err := openCatalog(dataDir, false)
	if err != nil {
		slog.Error("error while opening catalog", "err", err)
		os.Exit(1)
	}
	index, err := catalog.NewFileIndex()
	if err != nil {
		slog.Error("error while creating search index", "err", err)
		os.Exit(1)
	}
	cat := catalog.New(store, index)
	if err := cat.Load(context.Background()); err != nil {
		slog.Error("error while loading catalog", "err", err)
		os.Exit(1)
	}

	var client analytics.Client = analytics.NewRestClient(conf.AnalyticsURL,
		time.Duration(conf.AnalyticsTimeoutSeconds)*time.Second)
	if conf.ColumnsCacheSeconds > 0 {
		client = analytics.NewCachingClient(client, time.Duration(conf.ColumnsCacheSeconds)*time.Second)
	}

	slog.Info("starting server", "addr", serverConf.Addr, "port", serverConf.Port, "analytics", conf.AnalyticsURL)
	controller := server.NewDashboardController(client, cat, store, conf)
	server.StartServer(controller, conf, serverConf)
}

func runExport() {
	flags := pflag.NewFlagSet("export", pflag.ExitOnError)
	var figure, saved, output, dataDir, title string
	var width, height int
	flags.StringVarP(&figure, "figure", "f", "", "Plotly figure JSON file, - for stdin")
	flags.StringVarP(&saved, "saved", "s", "", "name of a chart saved from the dashboard")
	flags.StringVarP(&output, "output", "o", "", "output PNG file (required)")
	flags.StringVarP(&dataDir, "data-dir", "d", os.Getenv("SPA_DATA_DIR"), "data directory, needed with --saved")
	flags.StringVarP(&title, "title", "t", "", "title used when the figure has none")
	flags.IntVar(&width, "width", 0, "image width, defaults to the configured export width")
	flags.IntVar(&height, "height", 0, "image height, defaults to the configured export height")

	flags.Parse(os.Args[2:])

	if output == "" || (figure == "") == (saved == "") {
		fmt.Fprintln(os.Stderr, "Error: --output and exactly one of --figure or --saved are required")
		os.Exit(1)
	}

	conf := loadConfig(dataDir)
	if width <= 0 {
		width = conf.Export.Width
	}
	if height <= 0 {
		height = conf.Export.Height
	}

	var png []byte
	var err error
	if saved != "" {
		png, err = readSaved(dataDir, saved)
	} else {
		png, err = renderFigure(figure, title, width, height)
	}
	if err != nil {
		slog.Error("export failed", "err", err)
		os.Exit(1)
	}

	if err := os.WriteFile(output, png, 0o644); err != nil {
		slog.Error("error while writing output", "file", output, "err", err)
		os.Exit(1)
	}
	slog.Info("chart exported", "file", output, "bytes", len(png))
}

func renderFigure(figure, title string, width, height int) ([]byte, error) {
	var in io.Reader = os.Stdin
	if figure != "-" {
		f, err := os.Open(figure)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	if title == "" && figure != "-" {
		title = strings.TrimSuffix(figure[strings.LastIndex(figure, "/")+1:], ".json")
	}
	return export.NewRasterizer(width, height).PNG(analytics.Figure(raw), title)
}

func readSaved(dataDir, name string) ([]byte, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("--data-dir is required with --saved")
	}
	store, err := openCatalog(dataDir, true)
	if err != nil {
		return nil, err
	}
	chart, err := store.GetSavedChart(context.Background(), name)
	if err != nil {
		return nil, fmt.Errorf("reading saved chart %s: %w", name, err)
	}
	return chart.PNG, nil
}
