// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import "testing"

func TestBuildRequest(t *testing.T) {
	data := []struct {
		verb     string
		options  []cmdOption
		args     []string
		expected string
	}{
		{"read", []cmdOption{{"-c", "bai"}}, []string{"Status01"}, "read -c bai Status01"},
		{"read", []cmdOption{{"-c", "bai"}, {"-p", 5}, {"-m", 0}}, []string{"Status01"},
			"read -c bai -p 5 -m 0 Status01"},
		{"read", []cmdOption{{"-c", "bai"}, {"-m", nil}}, []string{"Status01"}, "read -c bai Status01"},
		{"write", []cmdOption{{"-c", "hc"}}, []string{"FlowTemp", "9;17"}, "write -c hc FlowTemp 9;17"},
		{"find", []cmdOption{{"-d", true}}, nil, "find -d"},
		{"find", []cmdOption{{"-d", false}}, nil, "find"},
		{"find", []cmdOption{{"-a", true}, {"-F", "type,circuit,name,fields"}}, nil,
			"find -a -F type,circuit,name,fields"},
		{"state", nil, nil, "state"},
		{"info", nil, nil, "info"},
		{"listen", nil, nil, "listen"},
	}
	for _, d := range data {
		request, err := buildRequest(d.verb, d.options, d.args...)
		if err != nil {
			t.Fatalf("buildRequest(%q) returned error: %v", d.verb, err)
		}
		if request != d.expected {
			t.Fatalf("buildRequest(%q) = %q, expected %q", d.verb, request, d.expected)
		}
	}
}

func TestBuildRequestUnknownVerb(t *testing.T) {
	if _, err := buildRequest("reboot", nil); err == nil {
		t.Fatal("buildRequest(reboot) did not fail")
	}
}
