package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/batchlog/internal/clock/system"
	"github.com/JakeFAU/batchlog/internal/config"
	"github.com/JakeFAU/batchlog/internal/id/uuid"
	"github.com/JakeFAU/batchlog/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.GetLogger(cfg.Logging.Name,
		logging.AsRoot(),
		logging.WithLevel(cfg.LogLevel()),
		logging.WithLogDir(cfg.Logging.Dir),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if err := logging.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "logger shutdown failed: %v\n", err)
		}
	}()

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	a, err := newApp(ctx, deps{
		cfg:      cfg,
		logger:   logger,
		loggers:  logging.GetLogger,
		registry: reg,
		clock:    system.New(),
		ids:      uuid.New(),
		barOut:   os.Stderr,
	})
	if err != nil {
		logger.Criticalf("startup failed: %v", err)
		return 1
	}

	code := 0
	if _, err := a.hashTree(ctx, root); err != nil {
		logger.Errorf("run failed: %v", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.close(shutdownCtx); err != nil {
		logger.Warningf("shutdown incomplete: %v", err)
	}
	return code
}
