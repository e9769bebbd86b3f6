// plclogger - Siemens S7 data block logger
//
// Reads a whole data block from an S7 PLC and saves it as CSV, one row per byte
// with the byte also decoded as BOOL, INT and REAL. Runs once from the command
// line, interactively in a terminal UI, or as a small HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"plclogger/config"
	"plclogger/driver"
	"plclogger/kafka"
	"plclogger/logging"
	"plclogger/mqtt"
	"plclogger/plcman"
	"plclogger/publish"
	"plclogger/tui"
	"plclogger/valkey"
	"plclogger/web"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Command line flags
var (
	configPath  = flag.String("config", config.DefaultPath(), "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version and exit")
	ipFlag      = flag.String("ip", "", "PLC IP address (overrides config)")
	dbFlag      = flag.Int("db", 1, "Data block number to read")
	rackFlag    = flag.Int("rack", 0, "PLC rack")
	slotFlag    = flag.Int("slot", 1, "PLC slot")
	timeoutFlag = flag.Duration("timeout", 10*time.Second, "Connect and request timeout")
	outFlag     = flag.String("out", "", "Output directory for CSV files, or - for stdout")
	tuiMode     = flag.Bool("tui", false, "Run the interactive terminal UI")
	serveMode   = flag.Bool("serve", false, "Serve the HTTP API")
	listenFlag  = flag.String("listen", "", "HTTP listen address host:port (overrides config)")
	infoMode    = flag.Bool("info", false, "Print CPU information and exit")
	logFile     = flag.String("log", "", "Path to log file (optional)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("plclogger %s\n", Version)
		os.Exit(0)
	}

	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitUsage
	}
	if err := applyFlags(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitUsage
	}
	if *tuiMode && *serveMode {
		fmt.Fprintln(os.Stderr, "Error: -tui and -serve are mutually exclusive")
		return exitUsage
	}

	// The terminal UI owns the screen; its log panel gets the console output instead.
	var console io.Writer = os.Stderr
	var store *tui.LogStore
	if *tuiMode {
		console = io.Discard
		store = tui.NewLogStore(500)
	}
	logger, err := logging.New(cfg.Log, console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return exitUsage
	}
	if store != nil {
		logger = logger.WithOptions(zap.Hooks(store.Hook))
	}
	defer logger.Sync()

	fanout := startPublishers(cfg, logger)
	defer fanout.Close()

	opts := []plcman.Option{
		plcman.WithLogger(logger.Named("plc")),
		plcman.WithPLCName(cfg.PLC.DisplayName()),
	}
	if fanout.Len() > 0 {
		opts = append(opts, plcman.WithPublisher(fanout))
	}
	session := plcman.NewSession(func() (driver.Driver, error) {
		return driver.Create(driver.Options{Family: cfg.PLC.Family, Timeout: cfg.PLC.Timeout})
	}, opts...)
	defer session.Disconnect()

	switch {
	case *tuiMode:
		return runTUI(cfg, session, store)
	case *serveMode:
		return runServe(cfg, session, logger)
	case *infoMode:
		return runInfo(cfg, session)
	default:
		return runOnce(cfg, session)
	}
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cfg *config.Config) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ip":
			cfg.PLC.Address = *ipFlag
		case "db":
			cfg.PLC.DB = *dbFlag
		case "rack":
			cfg.PLC.Rack = *rackFlag
		case "slot":
			cfg.PLC.Slot = *slotFlag
		case "timeout":
			cfg.PLC.Timeout = *timeoutFlag
		case "out":
			cfg.Output.Dir = *outFlag
		case "log":
			cfg.Log.File = *logFile
		case "log-level":
			cfg.Log.Level = *logLevel
		case "listen":
			host, port, perr := net.SplitHostPort(*listenFlag)
			if perr != nil {
				err = fmt.Errorf("invalid -listen %q: %w", *listenFlag, perr)
				return
			}
			p, perr := strconv.Atoi(port)
			if perr != nil {
				err = fmt.Errorf("invalid -listen port %q", port)
				return
			}
			cfg.Web.Host = host
			cfg.Web.Port = p
		}
	})
	return err
}

// startPublishers starts every enabled republisher. One that fails to start is
// logged and left out; the export does not depend on it.
func startPublishers(cfg *config.Config, logger *zap.Logger) *publish.Fanout {
	log := logger.Sugar()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pubs []publish.Publisher
	for i := range cfg.MQTT {
		mc := &cfg.MQTT[i]
		if !mc.Enabled {
			continue
		}
		p := mqtt.NewPublisher(mc, cfg.Namespace, logger)
		if err := p.Start(); err != nil {
			log.Warnf("MQTT %s: %v", mc.Name, err)
			continue
		}
		pubs = append(pubs, p)
	}
	for i := range cfg.Valkey {
		vc := &cfg.Valkey[i]
		if !vc.Enabled {
			continue
		}
		p := valkey.NewPublisher(vc, cfg.Namespace, logger)
		if err := p.Start(ctx); err != nil {
			log.Warnf("Valkey %s: %v", vc.Name, err)
			continue
		}
		pubs = append(pubs, p)
	}
	for i := range cfg.Kafka {
		kc := &cfg.Kafka[i]
		if !kc.Enabled {
			continue
		}
		p := kafka.NewProducer(kc, logger)
		if err := p.Start(ctx); err != nil {
			log.Warnf("Kafka %s: %v", kc.Name, err)
			continue
		}
		pubs = append(pubs, p)
	}
	return publish.NewFanout(logger, cfg.PublishTimeout, pubs...)
}

func params(cfg *config.Config) plcman.Params {
	return plcman.Params{Address: cfg.PLC.Address, Rack: cfg.PLC.Rack, Slot: cfg.PLC.Slot}
}

func runOnce(cfg *config.Config, session *plcman.Session) int {
	if err := session.Connect(params(cfg)); err != nil {
		return fail(err)
	}

	if cfg.Output.Dir == "-" {
		if _, err := session.WriteCSV(cfg.PLC.DB, os.Stdout); err != nil {
			return fail(err)
		}
		return exitOK
	}

	res, err := session.ReadAndExport(context.Background(), cfg.PLC.DB, cfg.Output.Dir)
	if err != nil {
		return fail(err)
	}
	fmt.Println(res.Path)
	return exitOK
}

func runInfo(cfg *config.Config, session *plcman.Session) int {
	if err := session.Connect(params(cfg)); err != nil {
		return fail(err)
	}
	info, err := session.DeviceInfo()
	if err != nil {
		return fail(err)
	}
	return writeInfo(os.Stdout, info)
}

// writeInfo prints info as indented JSON.
func writeInfo(w io.Writer, info *driver.DeviceInfo) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CPU info: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func runTUI(cfg *config.Config, session *plcman.Session, store *tui.LogStore) int {
	app := tui.NewApp(cfg, *configPath, session, store)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func runServe(cfg *config.Config, session *plcman.Session, logger *zap.Logger) int {
	log := logger.Sugar()

	// Connecting up front is a convenience; clients can POST /api/connect later.
	if cfg.PLC.Address != "" {
		if err := session.Connect(params(cfg)); err != nil {
			log.Warnf("Initial connect failed: %v", err)
		}
	}

	srv := web.NewServer(cfg.Web, cfg.PLC, session, cfg.Output.Dir, logger)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting API: %v\n", err)
		return exitUsage
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infof("Received %v, shutting down", sig)

	if err := srv.Stop(); err != nil {
		log.Warnf("API shutdown: %v", err)
	}
	return exitOK
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCode(err)
}
