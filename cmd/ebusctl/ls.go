// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ebustools/ebusctl/pkg/ebus"
)

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "list the selected message and field definitions",
		ArgsUsage: "[patterns]",
		Flags: []cli.Flag{
			scanWaitFlag(),
			&cli.BoolFlag{
				Name:  "name-only",
				Usage: "print 'circuit/name' only, one message per line",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "only list messages with this flag: r, w or u",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			filter, err := typeFilter(cmd.String("type"))
			if err != nil {
				return cli.Exit(err, 2)
			}
			client := newClient(cmd)
			defer client.Connection.Disconnect()
			if err := loadMsgDefs(ctx, client, cmd); err != nil {
				return err
			}
			defs, err := client.MsgDefs.Resolve(patternsArg(cmd), filter)
			if err != nil {
				return cli.Exit(err, 2)
			}
			for _, msgdef := range defs.All() {
				if cmd.Bool("name-only") {
					fmt.Println(msgdef.Ident())
					continue
				}
				for _, field := range msgdef.Fields {
					fmt.Printf("%-4s %s/%s %s\n",
						msgdef.TypeString(), msgdef.Ident(), field.Name, typeDetails(field.Type))
				}
			}
			return nil
		},
	}
}

func typeFilter(flag string) (func(*ebus.MsgDef) bool, error) {
	switch flag {
	case "":
		return nil, nil
	case "r":
		return func(m *ebus.MsgDef) bool { return m.Read }, nil
	case "w":
		return func(m *ebus.MsgDef) bool { return m.Write }, nil
	case "u":
		return func(m *ebus.MsgDef) bool { return m.Update }, nil
	}
	return nil, fmt.Errorf("invalid type %q, expected r, w or u", flag)
}

// typeDetails renders the value domain of a field type: the enumeration
// values, or the kind of value the type decodes to.
func typeDetails(type_ ebus.Type) string {
	switch t := type_.(type) {
	case ebus.EnumType:
		return strings.Join(t.Values(), ";")
	case ebus.IntType:
		if t.Divider > 0 {
			return "float"
		}
		return "int"
	case ebus.FloatType:
		return "float"
	case ebus.BoolType:
		return "bool"
	case ebus.DateType:
		return "date"
	case ebus.TimeType:
		if t.NoSecond {
			return "hhmm"
		}
		return "hhmmss"
	case ebus.DateTimeType:
		return "datetime"
	case ebus.WeekdayType:
		return "weekday"
	case ebus.PinType:
		return "pin"
	case ebus.HexType:
		return "hex"
	}
	return "str"
}
