// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ebustools/ebusctl/pkg/ebus"
)

func readCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "read the selected messages and print their values",
		ArgsUsage: "[patterns]",
		Flags: []cli.Flag{
			scanWaitFlag(),
			prioFlag(),
			&cli.IntFlag{
				Name:    "ttl",
				Aliases: []string{"t"},
				Value:   0,
				Usage:   "maximum age of value in seconds",
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
			defs, err := client.MsgDefs.Resolve(patternsArg(cmd), func(m *ebus.MsgDef) bool {
				return m.Read || m.Update
			})
			if err != nil {
				return cli.Exit(err, 2)
			}
			fmt.Printf("Reading %s\n", defs.Summary())
			for _, msgdef := range defs.All() {
				if !msgdef.Read {
					continue
				}
				msg, err := client.Read(ctx, msgdef, cmd.Bool("prio"), int(cmd.Int("ttl")))
				if err != nil {
					return err
				}
				if msg != nil {
					printMsg(cmap, msg)
				}
			}
			return nil
		},
	}
}
