// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// ebusctl talks to an ebusd daemon: it lists the message catalog, reads and
// writes message values, and follows the live update stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/ebustools/ebusctl/pkg/ebus"
)

const version = "0.2.0"

func main() {
	root := &cli.Command{
		Name:    "ebusctl",
		Usage:   "interact with an ebusd daemon",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"H"},
				Value:   "127.0.0.1",
				Usage:   "daemon host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"P"},
				Value:   ebus.DefaultPort,
				Usage:   "daemon port",
			},
			&cli.IntFlag{
				Name:    "timeout",
				Aliases: []string{"T"},
				Value:   10,
				Usage:   "I/O timeout in seconds",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "circuitmap",
				Usage: "YAML file with circuit display names",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.SetFormatter(&log.TextFormatter{})
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdCommand(),
			listenCommand(),
			lsCommand(),
			readCommand(),
			writeCommand(),
			observeCommand(),
			stateCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx, os.Args); err != nil {
		if coder, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
