// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"regexp"
	"strings"
)

var reEventLine = regexp.MustCompile(`^([A-z0-9]+(\.[A-z0-9]+)?) (\S+) (= )?(.*)$`)

// MsgDecoder decodes daemon event lines against a catalog.
type MsgDecoder struct {
	msgdefs *MsgDefs
}

// NewMsgDecoder returns a decoder over msgdefs.
func NewMsgDecoder(msgdefs *MsgDefs) *MsgDecoder {
	return &MsgDecoder{msgdefs: msgdefs}
}

// DecodeLine decodes one "circuit name = payload" event line. It returns a
// FormatError for lines that do not match the event grammar and an
// UnknownMsgError for messages the catalog does not know.
func (d *MsgDecoder) DecodeLine(line string) (Message, error) {
	match := reEventLine.FindStringSubmatch(line)
	if match == nil {
		return nil, &FormatError{Line: line}
	}
	circuit, name, payload := match[1], match[3], match[5]
	msgdef := d.msgdefs.Get(circuit, name)
	if msgdef == nil {
		return nil, &UnknownMsgError{Circuit: circuit, Name: name}
	}
	return d.DecodeValue(msgdef, strings.TrimSpace(payload)), nil
}

// DecodeValue decodes a payload string against msgdef. Payloads that cannot
// be split into field values at all come back as a BrokenMsg.
func (d *MsgDecoder) DecodeValue(msgdef *MsgDef, payload string) Message {
	payload = strings.TrimSpace(payload)
	if broken, reason := brokenPayload(msgdef, payload); broken {
		return &BrokenMsg{MsgDef: msgdef, Error: reason}
	}
	values := strings.Split(payload, ";")
	fields := make([]Field, 0, len(msgdef.Fields)+len(msgdef.VirtFields))
	for _, fielddef := range msgdef.Fields {
		var value interface{} = NA
		if fielddef.Idx < len(values) {
			raw := stripFieldName(strings.TrimSpace(values[fielddef.Idx]))
			var err error
			value, err = fielddef.Type.Decode(raw)
			if err != nil {
				// a single undecodable field never aborts the message
				value = FieldError{Raw: raw, Reason: err.Error()}
			}
		}
		fields = append(fields, Field{Def: fielddef, Value: value})
	}
	for _, virtdef := range msgdef.VirtFields {
		fields = append(fields, Field{Virt: virtdef, Value: virtdef.Derive(fields)})
	}
	return &Msg{MsgDef: msgdef, Fields: fields}
}

// brokenPayload reports payloads that cannot be decoded into fields: empty,
// the daemon's "no data stored", embedded errors, and payloads whose value
// count does not match a complete definition. Definitions narrowed to a
// field subset skip the count check, their indices point into the full
// payload.
func brokenPayload(msgdef *MsgDef, payload string) (bool, string) {
	if payload == "" {
		return true, payload
	}
	if payload == "no data stored" {
		return true, payload
	}
	if strings.Contains(payload, "ERR:") {
		return true, payload
	}
	if complete(msgdef) && len(strings.Split(payload, ";")) != len(msgdef.Fields) {
		return true, payload
	}
	return false, ""
}

var reFieldName = regexp.MustCompile(`^[A-Za-z0-9_.-]+=`)

// stripFieldName drops the "name=" prefix the daemon's verbose listen mode
// puts in front of each value.
func stripFieldName(raw string) string {
	if m := reFieldName.FindString(raw); m != "" {
		return raw[len(m):]
	}
	return raw
}

// complete reports whether the definition covers every payload position,
// its field indices forming 0..n-1.
func complete(msgdef *MsgDef) bool {
	for i, fielddef := range msgdef.Fields {
		if fielddef.Idx != i {
			return false
		}
	}
	return true
}
