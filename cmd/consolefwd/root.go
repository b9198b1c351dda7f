package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consolefwd/pkg/codec"
	"consolefwd/pkg/config"
	"consolefwd/pkg/console"
	"consolefwd/pkg/control"
	"consolefwd/pkg/ingest"
	"consolefwd/pkg/model"
	"consolefwd/pkg/output"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var flags struct {
	configPath    string
	address       string
	encoding      string
	target        string
	marker        string
	level         string
	queueCapacity int
	stdin         bool
	tcpAddr       string
	udpAddr       string
	echo          bool
	mirrorURL     string
	verbose       bool
}

var rootCmd = &cobra.Command{
	Use:   "consolefwd",
	Short: "Forward log lines to a mirrord console",
	Long: `consolefwd connects to a console over WebSocket, announces this process
and streams log records to it in order. Lines can be read from stdin or
received over TCP and UDP.`,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	f.StringVarP(&flags.address, "address", "a", "", "console address (host:port)")
	f.StringVar(&flags.encoding, "encoding", "", "wire encoding: json or cbor")
	f.StringVarP(&flags.target, "target", "t", "", "origin tag for ingested lines")
	f.StringVar(&flags.marker, "marker", "", "forward only origins containing this")
	f.StringVar(&flags.level, "level", "", "most verbose level forwarded")
	f.IntVar(&flags.queueCapacity, "queue-capacity", 0, "records buffered before callers block")
	f.BoolVar(&flags.stdin, "stdin", false, "forward lines read from stdin, exit on EOF")
	f.StringVar(&flags.tcpAddr, "tcp", "", "accept newline-delimited logs on this TCP address")
	f.StringVar(&flags.udpAddr, "udp", "", "accept logs on this UDP address")
	f.BoolVar(&flags.echo, "echo", false, "also write every frame to stdout")
	f.StringVar(&flags.mirrorURL, "mirror", "", "also POST every frame to this URL")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "debug output on stderr")
}

func loadConfig(cmd *cobra.Command, logger *slog.Logger) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnvOverrides(cfg, logger); err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("address") {
		cfg.Console.Address = flags.address
	}
	if f.Changed("encoding") {
		cfg.Console.Encoding = flags.encoding
	}
	if f.Changed("target") {
		cfg.Ingest.Target = flags.target
	}
	if f.Changed("marker") {
		cfg.Console.Marker = flags.marker
	}
	if f.Changed("level") {
		cfg.Console.LogLevel = flags.level
	}
	if f.Changed("queue-capacity") {
		cfg.Console.QueueCapacity = flags.queueCapacity
	}
	if f.Changed("stdin") {
		cfg.Ingest.Stdin = flags.stdin
	}
	if f.Changed("tcp") {
		cfg.Ingest.TCPAddr = flags.tcpAddr
	}
	if f.Changed("udp") {
		cfg.Ingest.UDPAddr = flags.udpAddr
	}
	if f.Changed("echo") {
		cfg.Outputs.Echo = flags.echo
	}
	if f.Changed("mirror") {
		cfg.Outputs.Mirror.URL = flags.mirrorURL
	}

	return cfg, cfg.Validate()
}

// buildOptions turns the config into forwarder options.
func buildOptions(cfg *config.Config, logger *slog.Logger) ([]console.Option, error) {
	c, err := codec.ByName(cfg.Console.Encoding)
	if err != nil {
		return nil, err
	}

	opts := []console.Option{
		console.WithCodec(c),
		console.WithQueueCapacity(cfg.Console.QueueCapacity),
		console.WithMarker(cfg.Console.Marker),
		console.WithChain(control.BuildChain(cfg.Processors, logger)),
	}
	if cfg.Outputs.Echo {
		opts = append(opts, console.WithTee(output.NewWriterConn(os.Stdout)))
	}
	if cfg.Outputs.Mirror.URL != "" {
		opts = append(opts, console.WithTee(output.NewHTTPConn(cfg.Outputs.Mirror.URL, c.ContentType(), cfg.Outputs.Mirror.Headers)))
	}
	return opts, nil
}

// applyLevel narrows the forwarder to cfg.Console.LogLevel. It covers
// slog calls and ingested lines alike.
func applyLevel(fwd *console.Forwarder, cfg *config.Config) error {
	level, err := model.ParseLevel(cfg.Console.LogLevel)
	if err != nil {
		return err
	}
	fwd.Level().Set(console.SlogLevel(level))
	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	logLevel := slog.LevelInfo
	if flags.verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}
	opts, err := buildOptions(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	err = console.Init(dialCtx, cfg.Console.Address, opts...)
	cancelDial()
	if err != nil {
		return err
	}
	fwd := console.Installed()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fwd.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()
	if err := applyLevel(fwd, cfg); err != nil {
		return err
	}

	slog.Default().Info("forwarder started", "target", cfg.Ingest.Target, "pid", os.Getpid())
	logger.Info("connected", "address", cfg.Console.Address, "encoding", cfg.Console.Encoding)

	parser := ingest.Parser{Target: cfg.Ingest.Target}
	sink := fwd.Sink()

	g, gctx := errgroup.WithContext(ctx)

	// A lost console ends the run.
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-fwd.Done():
			return errors.New("console connection lost")
		}
	})

	if cfg.Redis.Address != "" {
		watcher := control.NewWatcher(cfg.Redis, fwd.Pipeline(), logger)
		defer watcher.Close()
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if cfg.Ingest.TCPAddr != "" {
		tcp := ingest.NewTCPIngestor(cfg.Ingest.TCPAddr, sink, parser, logger)
		g.Go(func() error {
			if err := tcp.Start(gctx); err != nil {
				return fmt.Errorf("tcp ingestor: %w", err)
			}
			return nil
		})
	}

	if cfg.Ingest.UDPAddr != "" {
		udp := ingest.NewUDPIngestor(cfg.Ingest.UDPAddr, sink, parser, logger)
		g.Go(func() error {
			if err := udp.Start(gctx); err != nil {
				return fmt.Errorf("udp ingestor: %w", err)
			}
			return nil
		})
	}

	if cfg.Ingest.Stdin {
		// A blocked stdin read cannot be interrupted, so this reader is
		// left out of the group and stops the run on EOF instead.
		reader := ingest.NewReaderIngestor("stdin", os.Stdin, sink, parser, cfg.Ingest.MaxLineSize, logger)
		go func() {
			if err := reader.Run(gctx); err != nil {
				logger.Error("stdin", "error", err)
			}
			stop()
		}()
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}
