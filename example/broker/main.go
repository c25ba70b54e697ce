// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Example tribroker broker
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/destiny/tribroker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const statsInterval = 10 * time.Second

func main() {
	cfg, err := tribroker.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := &cli.App{
		Name:  "tribroker",
		Usage: "Run a three-queue publish/subscribe broker until the result target is reached",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"criterio"},
				Value:   cfg.Policy,
				Usage:   "routing policy: random, weighted or conditional",
			},
			&cli.StringFlag{Name: "host", Value: cfg.Host, Usage: "interface to bind"},
			&cli.IntFlag{Name: "port", Value: cfg.Port, Usage: "distribution port; results are received on port+1"},
			&cli.IntFlag{Name: "target", Value: cfg.Target, Usage: "number of results after which the broker stops"},
			&cli.StringFlag{Name: "metrics-addr", Value: cfg.MetricsAddr, Usage: "serve prometheus metrics on this address"},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel.String(), Usage: "ERROR, WARN, INFO, DEBUG or TRACE"},
			&cli.BoolFlag{Name: "json", Usage: "print the final report as JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg.Policy = c.String("policy")
			cfg.Host = c.String("host")
			cfg.Port = c.Int("port")
			cfg.Target = c.Int("target")
			cfg.MetricsAddr = c.String("metrics-addr")
			lvl, err := tribroker.ParseLogLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			cfg.LogLevel = lvl
			return run(c.Context, cfg, c.Bool("json"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		if errors.Is(err, tribroker.ErrPortInUse) {
			log.Printf("Port %d or %d is already in use", cfg.Port, cfg.Port+1)
		}
		log.Fatalf("Broker failed: %v", err)
	}
}

func run(ctx context.Context, cfg tribroker.Config, asJSON bool) error {
	logger := tribroker.NewLogger(cfg.LogLevel)
	opts := append(cfg.Options(), tribroker.WithLogger(logger))

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, tribroker.WithMetrics(reg))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
	}

	broker, err := tribroker.NewBroker(opts...)
	if err != nil {
		return err
	}
	if err := broker.Start(ctx); err != nil {
		return err
	}

	// Start stats reporting
	statsCtx, cancelStats := context.WithCancel(ctx)
	defer cancelStats()
	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				depths := broker.Store().Depths()
				logger.Info("broker stats",
					slog.Int("sessions", len(broker.Sessions())),
					slog.Int("results", broker.State().Total()),
					slog.Int(tribroker.Principal.String(), depths[tribroker.Principal]),
					slog.Int(tribroker.Secundaria.String(), depths[tribroker.Secundaria]),
					slog.Int(tribroker.Terciaria.String(), depths[tribroker.Terciaria]),
				)
			case <-statsCtx.Done():
				return
			}
		}
	}()

	report, err := broker.Wait()
	cancelStats()
	if report == nil {
		return err
	}

	if asJSON {
		p, jerr := report.JSON()
		if jerr != nil {
			return errors.Join(err, jerr)
		}
		fmt.Println(string(p))
	} else if _, werr := report.WriteTo(os.Stdout); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}
