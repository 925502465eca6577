// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// loadTestCatalog reads a recorded `find -a` dump, dropping scan circuits as
// LoadMsgDefs does. Every line of the dump has to parse, a parse failure
// fails the test.
func loadTestCatalog(t *testing.T, name string) *MsgDefs {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	msgdefs := NewMsgDefs()
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		msgdef, err := DecodeMsgDef(line)
		if err != nil {
			t.Fatalf("DecodeMsgDef(%q) returned error: %v", line, err)
		}
		if strings.HasPrefix(msgdef.Circuit, "scan") {
			continue
		}
		msgdefs.Add(msgdef)
	}
	return msgdefs
}

func TestDecodeRecordedCatalog(t *testing.T) {
	msgdefs := loadTestCatalog(t, "find0.txt")
	if msgdefs.Len() != 30 {
		t.Fatalf("loaded %d definitions: %s", msgdefs.Len(), msgdefs.Summary())
	}

	// spot checks across the catalog
	timer := msgdefs.Get("hc", "Timer.Monday")
	if timer == nil || len(timer.Fields) != 6 || timer.Fields[5].Name != "to.2" {
		t.Fatalf("got %v", timer)
	}
	outside := msgdefs.Get("ui", "OutsideTemp")
	if outside == nil || outside.Prio != 9 {
		t.Fatalf("got %v", outside)
	}
	flow := msgdefs.Get("bai", "FlowTemp")
	if flow == nil || len(flow.VirtFields) != 1 || flow.VirtFields[0].Name != "+temp+sensor" {
		t.Fatalf("got %v", flow)
	}
	status := msgdefs.Get("bai", "Status")
	if status == nil || len(status.Fields) != 1 || status.Fields[0].Name != "pressure" {
		t.Fatalf("got %v", status)
	}
}

func TestDecodeRecordedListen(t *testing.T) {
	msgdefs := loadTestCatalog(t, "find0.txt")
	decoder := NewMsgDecoder(msgdefs)

	raw, err := os.ReadFile(filepath.Join("testdata", "listen0.txt"))
	if err != nil {
		t.Fatal(err)
	}

	var msgs, broken, unknown, format int
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		msg, err := decoder.DecodeLine(line)
		switch err.(type) {
		case nil:
		case *UnknownMsgError:
			unknown++
			continue
		case *FormatError:
			format++
			continue
		default:
			t.Fatalf("DecodeLine(%q) returned error: %v", line, err)
		}
		switch decoded := msg.(type) {
		case *Msg:
			msgs++
			for _, field := range decoded.Fields {
				if _, bad := field.Value.(FieldError); bad {
					t.Fatalf("%q: field %s failed to decode: %v", line, field.Name(), field.Value)
				}
			}
		case *BrokenMsg:
			broken++
		}
	}
	if msgs != 17 || broken != 1 || unknown != 1 || format != 1 {
		t.Fatalf("decoded %d messages, %d broken, %d unknown, %d format errors",
			msgs, broken, unknown, format)
	}
}

func TestDecodeRecordedValues(t *testing.T) {
	msgdefs := loadTestCatalog(t, "find0.txt")
	decoder := NewMsgDecoder(msgdefs)

	msg, err := decoder.DecodeLine("bai StorageTemp = -;cutoff")
	if err != nil {
		t.Fatal(err)
	}
	fields := msg.(*Msg).Fields
	if fields[0].Value != NA || fields[1].Value != "cutoff" {
		t.Fatalf("got %v, %v", fields[0].Value, fields[1].Value)
	}
	// the sensor-gated virtual field surfaces the failure state
	if fields[2].Value != "cutoff" {
		t.Fatalf("virtual value is %v", fields[2].Value)
	}

	msg, err = decoder.DecodeLine("hc Timer.Monday = 06:00;22:00;-:-;-:-;-:-;-:-")
	if err != nil {
		t.Fatal(err)
	}
	fields = msg.(*Msg).Fields
	if fields[0].Value != (Time{Hour: 6, Minute: 0, NoSecond: true}) {
		t.Fatalf("from.0 is %v", fields[0].Value)
	}
	if fields[2].Value != NA {
		t.Fatalf("from.1 is %v", fields[2].Value)
	}
}
