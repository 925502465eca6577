// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"fmt"
	"strings"
)

// knownVerbs are the daemon commands the client assembles.
var knownVerbs = map[string]bool{
	"read":   true,
	"write":  true,
	"find":   true,
	"listen": true,
	"state":  true,
	"info":   true,
}

// cmdOption is one flag of a daemon command. A nil value omits the flag, a
// boolean renders as the bare flag when true.
type cmdOption struct {
	flag  string
	value interface{}
}

// buildRequest assembles one daemon command line from a verb, flag options
// and positional arguments.
func buildRequest(verb string, options []cmdOption, args ...string) (string, error) {
	if !knownVerbs[verb] {
		return "", fmt.Errorf("unknown command %q", verb)
	}
	parts := []string{verb}
	for _, option := range options {
		if option.value == nil {
			continue
		}
		if flag, ok := option.value.(bool); ok {
			if flag {
				parts = append(parts, option.flag)
			}
			continue
		}
		parts = append(parts, option.flag, fmt.Sprintf("%v", option.value))
	}
	for _, arg := range args {
		if arg != "" {
			parts = append(parts, arg)
		}
	}
	return strings.Join(parts, " "), nil
}
