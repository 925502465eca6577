// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func listenCommand() *cli.Command {
	return &cli.Command{
		Name:      "listen",
		Usage:     "follow the daemon's update stream",
		ArgsUsage: "[patterns]",
		Description: "Follow value updates on the bus, decoded and printed one " +
			"field per line. Patterns are ';'-separated 'circuit/name/field' " +
			"globs, default is '*/*' for everything.",
		Flags: []cli.Flag{scanWaitFlag()},
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
			stream := client.Listen(gctx, defs)
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
