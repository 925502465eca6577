// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func stateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "print the daemon state",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client := newClient(cmd)
			defer client.Connection.Disconnect()
			state, err := client.State(ctx)
			if err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		},
	}
}
