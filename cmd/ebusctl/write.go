// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ebustools/ebusctl/pkg/ebus"
)

func writeCommand() *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "write a value to a field",
		ArgsUsage: "field value",
		Description: "Write a value to a message field, 'hc/FlowTemp/temp 17'. " +
			"Fields not named by the pattern keep their current value. The " +
			"value NONE writes the not-available sentinel.",
		Flags: []cli.Flag{scanWaitFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return cli.Exit("write takes a field pattern and a value", 2)
			}
			pattern, value := cmd.Args().Get(0), cmd.Args().Get(1)
			client := newClient(cmd)
			defer client.Connection.Disconnect()
			if err := loadMsgDefs(ctx, client, cmd); err != nil {
				return err
			}
			defs, err := client.MsgDefs.Resolve([]string{pattern}, nil)
			if err != nil {
				return cli.Exit(err, 2)
			}
			for _, msgdef := range defs.All() {
				encoded := value
				if value == "NONE" {
					parts := make([]string, len(msgdef.Fields))
					for i, field := range msgdef.Fields {
						if parts[i], err = field.Type.Encode(ebus.NA); err != nil {
							return err
						}
					}
					encoded = strings.Join(parts, ";")
				}
				if err := client.Write(ctx, msgdef, encoded); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
