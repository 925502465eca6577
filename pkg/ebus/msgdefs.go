// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var reResolve = regexp.MustCompile(`^([^/#]+)/([^/#]+)(#(\d))?(/([^/#]*))?$`)

// MsgDefs is the message definition catalog, a two-level mapping from
// circuit to name to an ordered list of definitions. The list permits
// multiple definitions with the same key (distinct field selections), get
// returns the first, which is the one originally added from the daemon.
type MsgDefs struct {
	defs  map[string]map[string][]*MsgDef
	order []*MsgDef
}

// NewMsgDefs returns an empty catalog.
func NewMsgDefs() *MsgDefs {
	m := &MsgDefs{}
	m.Clear()
	return m
}

// Clear removes all stored message definitions.
func (m *MsgDefs) Clear() {
	m.defs = make(map[string]map[string][]*MsgDef)
	m.order = nil
}

// Add stores a message definition. A definition naming the same fields as
// an already stored one (the daemon lists read and write variants of a
// message separately) is joined into it instead.
func (m *MsgDefs) Add(msgdef *MsgDef) {
	circuit, ok := m.defs[msgdef.Circuit]
	if !ok {
		circuit = make(map[string][]*MsgDef)
		m.defs[msgdef.Circuit] = circuit
	}
	for i, existing := range circuit[msgdef.Name] {
		if joined := existing.Join(msgdef); joined != nil {
			circuit[msgdef.Name][i] = joined
			for j, ordered := range m.order {
				if ordered == existing {
					m.order[j] = joined
					break
				}
			}
			return
		}
	}
	circuit[msgdef.Name] = append(circuit[msgdef.Name], msgdef)
	m.order = append(m.order, msgdef)
}

// Get returns the first definition stored for (circuit, name), or nil.
func (m *MsgDefs) Get(circuit, name string) *MsgDef {
	if byName, ok := m.defs[circuit]; ok {
		if defs, ok := byName[name]; ok && len(defs) > 0 {
			return defs[0]
		}
	}
	return nil
}

// All returns the stored definitions in insertion order.
func (m *MsgDefs) All() []*MsgDef {
	return m.order
}

// Len returns the number of stored definitions.
func (m *MsgDefs) Len() int {
	return len(m.order)
}

// Contains reports whether an equal definition is already stored.
func (m *MsgDefs) Contains(msgdef *MsgDef) bool {
	if byName, ok := m.defs[msgdef.Circuit]; ok {
		for _, existing := range byName[msgdef.Name] {
			if existing.Equal(msgdef) {
				return true
			}
		}
	}
	return false
}

// Find returns a new catalog with all definitions whose circuit and name
// match the glob patterns.
func (m *MsgDefs) Find(circuit, name string) *MsgDefs {
	found := NewMsgDefs()
	for _, msgdef := range m.order {
		if glob(circuit, msgdef.Circuit) && glob(name, msgdef.Name) {
			found.Add(msgdef)
		}
	}
	return found
}

// Resolve expands path patterns of the form "circuit/name(#prio)?(/field)?"
// into a new catalog. Field patterns glob field names and narrow the
// definition to the matching fields. A priority suffix overrides the poll
// priority of readable messages. Patterns union, duplicates collapse.
func (m *MsgDefs) Resolve(patterns []string, filter func(*MsgDef) bool) (*MsgDefs, error) {
	resolved := NewMsgDefs()
	for _, pattern := range patterns {
		msgdefs, err := m.resolve(strings.TrimSpace(pattern))
		if err != nil {
			return nil, err
		}
		for _, msgdef := range msgdefs {
			if !resolved.Contains(msgdef) && (filter == nil || filter(msgdef)) {
				resolved.Add(msgdef)
			}
		}
	}
	return resolved, nil
}

func (m *MsgDefs) resolve(pattern string) ([]*MsgDef, error) {
	match := reResolve.FindStringSubmatch(pattern)
	if match == nil {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	circuit, name, prioStr, fieldname := match[1], match[2], match[4], match[6]
	hasField := match[5] != ""
	var resolved []*MsgDef
	for _, msgdef := range m.Find(circuit, name).All() {
		fields := msgdef.Fields
		if hasField {
			fields = nil
			for _, field := range msgdef.Fields {
				if glob(fieldname, field.Name) {
					fields = append(fields, field)
				}
			}
		}
		if len(fields) == 0 {
			continue
		}
		if len(fields) == len(msgdef.Fields) && (prioStr == "" || !msgdef.Read) {
			resolved = append(resolved, msgdef)
			continue
		}
		prio := msgdef.Prio
		if prioStr != "" {
			prio, _ = strconv.Atoi(prioStr)
		}
		copied := make([]*FieldDef, len(fields))
		for i, field := range fields {
			copied[i] = field.copy()
		}
		var virts []*VirtFieldDef
		if len(fields) == len(msgdef.Fields) {
			virts = msgdef.VirtFields
		}
		resolved = append(resolved, NewMsgDef(msgdef.Circuit, msgdef.Name, copied, virts,
			msgdef.Read, prio, msgdef.Write, msgdef.Update))
	}
	return resolved, nil
}

// Summary renders "N messages (R read, U update, W write) with F fields".
func (m *MsgDefs) Summary() string {
	var read, update, write, fields int
	for _, msgdef := range m.order {
		if msgdef.Read {
			read++
		}
		if msgdef.Update {
			update++
		}
		if msgdef.Write {
			write++
		}
		fields += len(msgdef.Fields)
	}
	return fmt.Sprintf("%d messages (%d read, %d update, %d write) with %d fields",
		len(m.order), read, update, write, fields)
}

// glob matches name against an fnmatch-style pattern. A malformed pattern
// matches nothing.
func glob(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
