// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Example tribroker subscriber
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/destiny/tribroker"
	"github.com/destiny/tribroker/subscriber"
	"github.com/urfave/cli/v2"
)

func main() {
	cfg, err := tribroker.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := &cli.App{
		Name:  "tribroker-subscriber",
		Usage: "Subscribe to one or two broker queues and return the square of the sum of every item",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Value: cfg.ClientID, Usage: "client identifier (default: random UUID)"},
			&cli.StringFlag{Name: "host", Value: cfg.Host, Usage: "broker host"},
			&cli.IntFlag{Name: "port", Value: cfg.Port, Usage: "broker distribution port"},
			&cli.StringFlag{
				Name:  "queues",
				Usage: "comma-separated queues to subscribe to (default: one or two at random)",
			},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel.String(), Usage: "ERROR, WARN, INFO, DEBUG or TRACE"},
		},
		Action: func(c *cli.Context) error {
			lvl, err := tribroker.ParseLogLevel(c.String("log-level"))
			if err != nil {
				return err
			}

			queues, err := parseQueues(c.String("queues"))
			if err != nil {
				return err
			}

			client, err := subscriber.New(c.String("id"), queues,
				subscriber.WithAddress(c.String("host"), c.Int("port")),
				subscriber.WithLogger(tribroker.NewLogger(lvl)),
			)
			if err != nil {
				return err
			}

			log.Printf("Subscriber %s listening on %s", client.ID(), client.Queues())
			if err := client.Run(c.Context); err != nil {
				return err
			}
			log.Printf("Subscriber %s processed %d items", client.ID(), client.Processed())
			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		log.Fatalf("Subscriber failed: %v", err)
	}
}

func parseQueues(s string) (tribroker.QueueSet, error) {
	if strings.TrimSpace(s) == "" {
		return subscriber.RandomQueues(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))), nil
	}

	var set tribroker.QueueSet
	for _, name := range strings.Split(s, ",") {
		q, err := tribroker.ParseQueueID(strings.TrimSpace(name))
		if err != nil {
			return 0, fmt.Errorf("invalid --queues %q: %w", s, err)
		}
		set = set.Add(q)
	}
	return set, nil
}
