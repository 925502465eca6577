// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ebustools/ebusctl/pkg/ebus"
)

// newClient builds the client from the global flags.
func newClient(cmd *cli.Command) *ebus.Client {
	timeout := time.Duration(cmd.Int("timeout")) * time.Second
	return ebus.NewClient(cmd.String("host"), int(cmd.Int("port")), timeout)
}

// newCircuitMap builds the display-name map, merging the --circuitmap file
// over the defaults.
func newCircuitMap(cmd *cli.Command) (*ebus.CircuitMap, error) {
	cmap := ebus.NewCircuitMap()
	if path := cmd.String("circuitmap"); path != "" {
		if err := cmap.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cmap, nil
}

// scanWaitFlag is shared by every subcommand that loads the catalog.
func scanWaitFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "scanwait",
		Aliases: []string{"w"},
		Usage: "wait until the daemon's startup device scan stops finding " +
			"new messages before loading the catalog",
	}
}

func prioFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "prio",
		Aliases: []string{"p"},
		Usage:   "set poll priority",
	}
}

// loadMsgDefs loads the catalog, optionally waiting for the daemon's device
// scan to settle first.
func loadMsgDefs(ctx context.Context, client *ebus.Client, cmd *cli.Command) error {
	if cmd.Bool("scanwait") {
		fmt.Print("Waiting for device scan to complete ")
		err := client.WaitScanComplete(ctx, 10*time.Second, func(int) {
			fmt.Print(".")
		})
		if err != nil {
			fmt.Println()
			return err
		}
		fmt.Println(" DONE.")
	}
	fmt.Print("Loading message definitions ... ")
	if err := client.LoadMsgDefs(ctx); err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf("%s DONE.\n", client.MsgDefs.Summary())
	return nil
}

// patternsArg splits the ";"-separated path patterns argument, defaulting
// to everything.
func patternsArg(cmd *cli.Command) []string {
	arg := cmd.Args().First()
	if arg == "" {
		arg = "*/*"
	}
	return strings.Split(arg, ";")
}

// printMsg writes one line per field of a decoded message.
func printMsg(cmap *ebus.CircuitMap, msg ebus.Message) {
	decoded, ok := msg.(*ebus.Msg)
	if !ok {
		broken := msg.(*ebus.BrokenMsg)
		fmt.Printf("%-40s      %s\n", displayIdent(cmap, broken.MsgDef), broken.Error)
		return
	}
	for _, field := range decoded.Fields {
		details := ""
		if comment := field.Comment(); comment != "" {
			details = fmt.Sprintf(" [%s]", comment)
		}
		ident := displayIdent(cmap, decoded.MsgDef) + "/" + field.Name()
		fmt.Printf("%-40s %s %s%s\n", ident, decoded.MsgDef.TypeString(), field.UnitValue(), details)
	}
}

// ignoreCanceled maps the error of a deliberately interrupted stream to a
// clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// displayIdent renders "circuit/name" with the circuit mapped to its
// display name.
func displayIdent(cmap *ebus.CircuitMap, msgdef *ebus.MsgDef) string {
	if cmap == nil {
		return msgdef.Ident()
	}
	return cmap.Get(msgdef.Circuit) + "/" + msgdef.Name
}
