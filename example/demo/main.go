// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Demo - runs a broker and a handful of subscribers in one process
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/destiny/tribroker"
	"github.com/destiny/tribroker/subscriber"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := tribroker.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := &cli.App{
		Name:  "tribroker-demo",
		Usage: "Run a broker plus N subscribers until the result target is reached",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy", Aliases: []string{"criterio"}, Value: cfg.Policy, Usage: "routing policy"},
			&cli.IntFlag{Name: "port", Value: cfg.Port, Usage: "distribution port"},
			&cli.IntFlag{Name: "target", Value: cfg.Target, Usage: "number of results to collect"},
			&cli.IntFlag{Name: "subscribers", Aliases: []string{"n"}, Value: cfg.Subscribers, Usage: "number of subscribers"},
			&cli.StringFlag{Name: "log-level", Value: tribroker.LogLevelWarn.String(), Usage: "ERROR, WARN, INFO, DEBUG or TRACE"},
		},
		Action: func(c *cli.Context) error {
			cfg.Policy = c.String("policy")
			cfg.Port = c.Int("port")
			cfg.Target = c.Int("target")
			cfg.Subscribers = c.Int("subscribers")
			lvl, err := tribroker.ParseLogLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			cfg.LogLevel = lvl
			return run(c.Context, cfg)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

func run(ctx context.Context, cfg tribroker.Config) error {
	if cfg.Subscribers < 1 {
		return fmt.Errorf("need at least one subscriber, got %d", cfg.Subscribers)
	}

	logger := tribroker.NewLogger(cfg.LogLevel)
	broker, err := tribroker.NewBroker(append(cfg.Options(), tribroker.WithLogger(logger))...)
	if err != nil {
		return err
	}
	if err := broker.Start(ctx); err != nil {
		return err
	}

	fmt.Println("=== tribroker demo ===")
	fmt.Printf("Policy: %s, target: %d, subscribers: %d\n", broker.Policy(), cfg.Target, cfg.Subscribers)

	// Subscribers stop on their own when the broker closes their streams;
	// the signal context covers an interrupt.
	var g errgroup.Group
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	for i := 1; i <= cfg.Subscribers; i++ {
		client, err := subscriber.New(fmt.Sprintf("cliente_%d", i), subscriber.RandomQueues(rng),
			subscriber.WithAddress(cfg.Host, cfg.Port),
			subscriber.WithLogger(logger),
		)
		if err != nil {
			broker.Stop()
			_, _ = broker.Wait()
			return err
		}
		fmt.Printf("  - %s subscribed to %s\n", client.ID(), client.Queues())
		g.Go(func() error { return client.Run(ctx) })
	}

	report, err := broker.Wait()
	if gerr := g.Wait(); gerr != nil {
		log.Printf("Subscriber error: %v", gerr)
	}
	if report != nil {
		if _, werr := report.WriteTo(os.Stdout); werr != nil {
			return werr
		}
	}
	return err
}
