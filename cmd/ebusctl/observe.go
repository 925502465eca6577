// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func observeCommand() *cli.Command {
	return &cli.Command{
		Name:      "observe",
		Usage:     "read all selected messages once, then follow updates",
		ArgsUsage: "[patterns]",
		Description: "Read every selected readable message once, catch up on " +
			"updates that raced the sweep, and continue with the live stream, " +
			"printing values as they change.",
		Flags: []cli.Flag{
			scanWaitFlag(),
			prioFlag(),
			&cli.IntFlag{
				Name:    "ttl",
				Aliases: []string{"t"},
				Value:   -1,
				Usage:   "maximum age of value in seconds, -1 accepts any",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client := newClient(cmd)
			defer client.Connection.Disconnect()
			cmap, err := newCircuitMap(cmd)
			if err != nil {
				return err
			}
			if err := loadMsgDefs(ctx, client, cmd); err != nil {
				return err
			}
			defs, err := client.MsgDefs.Resolve(patternsArg(cmd), nil)
			if err != nil {
				return cli.Exit(err, 2)
			}
			g, gctx := errgroup.WithContext(ctx)
			stream := client.Observe(gctx, defs, cmd.Bool("prio"), int(cmd.Int("ttl")))
			g.Go(func() error {
				for msg := range stream.C() {
					printMsg(cmap, msg)
				}
				return stream.Err()
			})
			return ignoreCanceled(g.Wait())
		},
	}
}
