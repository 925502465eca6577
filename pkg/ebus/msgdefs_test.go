// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"reflect"
	"strings"
	"testing"
)

func timerMsgDef(t *testing.T) *MsgDef {
	t.Helper()
	fields := []string{
		"from", "s", "TTM", "", "", "",
		"to", "s", "TTM", "", "", "",
		"from", "s", "TTM", "", "", "",
		"to", "s", "TTM", "", "", "",
		"from", "s", "TTM", "", "", "",
		"to", "s", "TTM", "", "", "",
	}
	msgdef, err := DecodeMsgDef("r,mc.5,Timer.Friday," + strings.Join(fields, ","))
	if err != nil {
		t.Fatal(err)
	}
	return msgdef
}

func statusMsgDef(circuit, name string) *MsgDef {
	return NewMsgDef(circuit, name, []*FieldDef{tempField(0, "temp")}, nil, true, 0, false, false)
}

func TestMsgDefsAddGet(t *testing.T) {
	msgdefs := NewMsgDefs()
	a := statusMsgDef("mc", "Status0a")
	msgdefs.Add(a)
	msgdefs.Add(statusMsgDef("hc", "Status0"))
	if msgdefs.Len() != 2 {
		t.Fatalf("len is %d", msgdefs.Len())
	}
	if msgdefs.Get("mc", "Status0a") != a {
		t.Fatal("get did not return the first added definition")
	}
	if msgdefs.Get("mc", "nope") != nil || msgdefs.Get("nope", "Status0a") != nil {
		t.Fatal("get invented a definition")
	}
}

func TestMsgDefsAddJoinsVariants(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(NewMsgDef("hc", "FlowTemp", []*FieldDef{tempField(0, "temp")}, nil, true, 0, false, false))
	msgdefs.Add(NewMsgDef("hc", "FlowTemp", []*FieldDef{tempField(0, "temp")}, nil, false, 0, true, false))
	if msgdefs.Len() != 1 {
		t.Fatalf("len is %d", msgdefs.Len())
	}
	joined := msgdefs.Get("hc", "FlowTemp")
	if !joined.Read || !joined.Write {
		t.Fatalf("joined flags are %s", joined.TypeString())
	}
}

func TestMsgDefsFind(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(statusMsgDef("mc", "Status0a"))
	msgdefs.Add(statusMsgDef("mc.5", "Status0a"))
	msgdefs.Add(statusMsgDef("hc", "Status0"))
	if found := msgdefs.Find("mc*", "*"); found.Len() != 2 {
		t.Fatalf("found %d", found.Len())
	}
	if found := msgdefs.Find("*", "Status0"); found.Len() != 1 {
		t.Fatalf("found %d", found.Len())
	}
}

func TestResolveFieldPatternWithPrio(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(timerMsgDef(t))

	resolved, err := msgdefs.Resolve([]string{"mc.5/Timer.Friday#3/to*"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Len() != 1 {
		t.Fatalf("resolved %d definitions", resolved.Len())
	}
	msgdef := resolved.All()[0]
	if msgdef.Ident() != "mc.5/Timer.Friday" || !msgdef.Read || msgdef.Prio != 3 {
		t.Fatalf("got %v prio=%d", msgdef, msgdef.Prio)
	}
	names := fieldNames(msgdef)
	if !reflect.DeepEqual(names, []string{"to.0", "to.1", "to.2"}) {
		t.Fatalf("fields are %v", names)
	}
	// indices keep pointing at the payload positions
	if msgdef.Fields[0].Idx != 1 || msgdef.Fields[2].Idx != 5 {
		t.Fatalf("indices are %d, %d", msgdef.Fields[0].Idx, msgdef.Fields[2].Idx)
	}
}

func TestResolveAllFieldsReturnsOriginal(t *testing.T) {
	msgdefs := NewMsgDefs()
	original := timerMsgDef(t)
	msgdefs.Add(original)
	resolved, err := msgdefs.Resolve([]string{"mc.5/Timer.Friday"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.All()[0] != original {
		t.Fatal("resolve copied an unchanged definition")
	}
	// a field pattern matching every field also yields the original
	resolved, err = msgdefs.Resolve([]string{"mc.5/Timer.Friday/*"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.All()[0] != original {
		t.Fatal("resolve copied an unchanged definition")
	}
}

func TestResolveIdempotent(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(timerMsgDef(t))
	once, err := msgdefs.Resolve([]string{"mc.5/Timer.Friday#3/to*"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := msgdefs.Resolve([]string{"mc.5/Timer.Friday#3/to*", "mc.5/Timer.Friday#3/to*"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if once.Len() != twice.Len() {
		t.Fatalf("resolve is not idempotent: %d != %d", once.Len(), twice.Len())
	}
	if !once.All()[0].Equal(twice.All()[0]) {
		t.Fatal("resolved definitions differ")
	}
}

func TestResolveNoFieldMatch(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(timerMsgDef(t))
	resolved, err := msgdefs.Resolve([]string{"mc.5/Timer.Friday/nope*"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Len() != 0 {
		t.Fatalf("resolved %d definitions", resolved.Len())
	}
}

func TestResolveFilter(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(statusMsgDef("mc", "Status0a"))
	msgdefs.Add(NewMsgDef("ui", "TempIncrease", []*FieldDef{tempField(0, "temp")}, nil, false, 0, true, false))
	resolved, err := msgdefs.Resolve([]string{"*/*"}, func(m *MsgDef) bool { return m.Read })
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Len() != 1 || !resolved.All()[0].Read {
		t.Fatalf("resolved %d definitions", resolved.Len())
	}
}

func TestResolveInvalidPattern(t *testing.T) {
	msgdefs := NewMsgDefs()
	for _, pattern := range []string{"nope", "a/b/c/d", "a#1/b"} {
		if _, err := msgdefs.Resolve([]string{pattern}, nil); err == nil {
			t.Fatalf("Resolve(%q) did not fail", pattern)
		}
	}
}

func TestSummary(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(statusMsgDef("mc", "Status0a"))
	msgdefs.Add(NewMsgDef("hc", "Status0", []*FieldDef{tempField(0, "temp"), tempField(1, "temp0")}, nil, true, 0, false, false))
	msgdefs.Add(NewMsgDef("ui", "TempIncrease", []*FieldDef{tempField(0, "temp")}, nil, false, 0, true, false))
	msgdefs.Add(NewMsgDef("broadcast", "datetime", []*FieldDef{tempField(0, "time")}, nil, false, 0, false, true))
	expected := "4 messages (2 read, 1 update, 1 write) with 5 fields"
	if msgdefs.Summary() != expected {
		t.Fatalf("summary is %q, expected %q", msgdefs.Summary(), expected)
	}
}

func TestClear(t *testing.T) {
	msgdefs := NewMsgDefs()
	msgdefs.Add(statusMsgDef("mc", "Status0a"))
	msgdefs.Clear()
	if msgdefs.Len() != 0 || msgdefs.Get("mc", "Status0a") != nil {
		t.Fatal("clear left definitions behind")
	}
}
