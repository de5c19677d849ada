package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinytelemetry/logwatch/internal/loggen"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

type options struct {
	mode     string
	scenario string
	dir      string
	tcpAddr  string
	seed     uint64
	speed    float64
	reset    bool
}

func main() {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.mode, "mode", loggen.ModeDemo, "demo, rapid, apt, continuous, normal or once")
	flag.StringVar(&opts.scenario, "scenario", "", "play a single scenario and exit")
	flag.StringVar(&opts.dir, "dir", "logs", "directory to append auth.log, apache.log and windows.log to")
	flag.StringVar(&opts.tcpAddr, "tcp", "", "stream to a logwatch TCP input instead of files (host:port)")
	flag.Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Float64Var(&opts.speed, "speed", 1, "pause multiplier; 0 writes without pauses")
	flag.BoolVar(&opts.reset, "reset", false, "truncate existing log files before writing")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("LogWatch Sentinel - Log Generator\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	sink, err := openSink(ctx, opts)
	if err != nil {
		return err
	}
	defer sink.Close()

	runner := loggen.NewRunner(sink, loggen.Config{
		Mode:  opts.mode,
		Seed:  opts.seed,
		Speed: opts.speed,
	})

	if opts.scenario != "" {
		err := runner.RunScenario(ctx, opts.scenario)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return runner.Run(ctx)
}

func openSink(ctx context.Context, opts options) (loggen.Sink, error) {
	if opts.speed < 0 {
		return nil, fmt.Errorf("invalid speed: %v", opts.speed)
	}
	if opts.tcpAddr != "" {
		return loggen.DialTCP(ctx, opts.tcpAddr)
	}
	return loggen.NewDirSink(opts.dir, opts.reset)
}
