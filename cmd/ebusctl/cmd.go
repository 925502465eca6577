// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v3"

	"github.com/ebustools/ebusctl/pkg/ebus"
)

func cmdCommand() *cli.Command {
	return &cli.Command{
		Name:      "cmd",
		Usage:     "send a raw command to the daemon",
		ArgsUsage: "[command]",
		Description: "Send a raw daemon command and print the response. " +
			"Without a command an interactive shell is opened.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "infinite",
				Aliases: []string{"i"},
				Usage:   "do not stop on the empty response terminator line",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client := newClient(cmd)
			defer client.Connection.Disconnect()
			if cmd.Args().Len() == 0 {
				return shell(ctx, client)
			}
			raw := strings.Join(cmd.Args().Slice(), " ")
			return runRaw(ctx, client, raw, cmd.Bool("infinite"))
		},
	}
}

func runRaw(ctx context.Context, client *ebus.Client, raw string, infinite bool) error {
	stream := client.Cmd(ctx, raw, infinite)
	for line := range stream.C() {
		fmt.Println(line)
	}
	return ignoreCanceled(stream.Err())
}

// shell is an interactive prompt sending each input line as a raw daemon
// command. History works, ^C aborts the current line, "disconnect" or ^D
// leaves.
func shell(ctx context.Context, client *ebus.Client) error {
	input := liner.NewLiner()
	defer input.Close()

	input.SetCtrlCAborts(true)

	prompt := fmt.Sprintf("ebusctl:%s:%d$ ", client.Connection.Host(), client.Connection.Port())

	for {
		line, err := input.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		} else if err == io.EOF {
			fmt.Println()
			return nil
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)

		if line == "disconnect" {
			return nil
		}

		if err := runRaw(ctx, client, line, false); err != nil {
			fmt.Println("ERROR:", err)
		}
	}
}
