package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/platinummonkey/neuronote/pkg/config"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Observability)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("neuronote exited with error")
		os.Exit(1)
	}
}

func newLogger(cfg config.ObservabilityConfig) *observability.Logger {
	if cfg.LogFormat == "text" {
		return observability.NewTextLogger(cfg.LogLevel, os.Stdout)
	}
	return observability.NewLogger(cfg.LogLevel, os.Stdout)
}
