// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"fmt"
)

// FieldDef describes one positional value within a message payload. Idx is
// the semicolon position in the payload, counted across all non-ignored
// physical fields. Name is unique within its message, duplicates carry a
// ".N" suffix.
type FieldDef struct {
	Idx     int
	Name    string
	Type    Type
	Unit    string
	Comment string
}

// Equal reports structural equality.
func (f *FieldDef) Equal(other *FieldDef) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Idx == other.Idx &&
		f.Name == other.Name &&
		f.Type == other.Type &&
		f.Unit == other.Unit &&
		f.Comment == other.Comment
}

func (f *FieldDef) copy() *FieldDef {
	clone := *f
	return &clone
}

func (f *FieldDef) String() string {
	return fmt.Sprintf("FieldDef(%d, %q, %v)", f.Idx, f.Name, f.Type)
}

// VirtKind selects the derivation rule of a virtual field.
type VirtKind int

const (
	// VirtDateTime merges an adjacent date and time field pair.
	VirtDateTime VirtKind = iota
	// VirtSensor gates the first field's value on a trailing sensor status
	// field.
	VirtSensor
)

// VirtFieldDef is a field synthesized from the physical fields of the same
// message. The indices refer to positions in the message's field list.
type VirtFieldDef struct {
	Name string
	Type Type
	Unit string
	Kind VirtKind

	// VirtDateTime
	DateIdx  int
	TimeIdx  int
	StateIdx int // -1 when the message has no dcfstate field

	// VirtSensor
	ValueIdx  int
	SensorIdx int
}

// Equal reports structural equality.
func (v *VirtFieldDef) Equal(other *VirtFieldDef) bool {
	if v == nil || other == nil {
		return v == other
	}
	return *v == *other
}

// Derive computes the virtual field's value from the decoded physical
// fields.
func (v *VirtFieldDef) Derive(fields []Field) interface{} {
	switch v.Kind {
	case VirtDateTime:
		var state interface{}
		if v.StateIdx >= 0 {
			state = fields[v.StateIdx].Value
		}
		return mergeDateTime(fields[v.DateIdx].Value, fields[v.TimeIdx].Value, state)
	case VirtSensor:
		return mergeSensorStatus(fields[v.ValueIdx].Value, fields[v.SensorIdx].Value)
	}
	return NA
}

func mergeDateTime(date, time_, state interface{}) interface{} {
	d, dok := date.(Date)
	t, tok := time_.(Time)
	if !dok || !tok {
		return NA
	}
	if state != nil {
		s, ok := state.(string)
		if !ok || s != "valid" {
			return state
		}
	}
	return DateTime{Year: d.Year, Month: d.Month, Day: d.Day, Hour: t.Hour, Minute: t.Minute, Second: t.Second}
}

func mergeSensorStatus(value, sensor interface{}) interface{} {
	if sensor == "ok" {
		return value
	}
	return sensor
}

// MsgDef is the immutable definition of a named addressable record on a
// circuit. Fields come first, virtual fields after them. A definition that
// is not readable never carries a poll priority.
type MsgDef struct {
	Circuit    string
	Name       string
	Fields     []*FieldDef
	VirtFields []*VirtFieldDef
	Read       bool
	Prio       int // 0 means none, only meaningful with Read
	Write      bool
	Update     bool
}

// NewMsgDef builds a MsgDef, dropping the priority of non-readable
// definitions.
func NewMsgDef(circuit, name string, fields []*FieldDef, virtfields []*VirtFieldDef, read bool, prio int, write, update bool) *MsgDef {
	if !read {
		prio = 0
	}
	return &MsgDef{
		Circuit:    circuit,
		Name:       name,
		Fields:     fields,
		VirtFields: virtfields,
		Read:       read,
		Prio:       prio,
		Write:      write,
		Update:     update,
	}
}

// Ident returns "circuit/name".
func (m *MsgDef) Ident() string {
	return m.Circuit + "/" + m.Name
}

// TypeString renders the four flag characters: read, priority, write,
// update.
func (m *MsgDef) TypeString() string {
	r, p, w, u := "-", "-", "-", "-"
	if m.Read {
		r = "r"
	}
	if m.Prio != 0 {
		p = fmt.Sprintf("%d", m.Prio)
	}
	if m.Write {
		w = "w"
	}
	if m.Update {
		u = "u"
	}
	return r + p + w + u
}

// Equal reports structural equality over circuit, name, children and flags.
func (m *MsgDef) Equal(other *MsgDef) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Circuit != other.Circuit || m.Name != other.Name ||
		m.Read != other.Read || m.Prio != other.Prio ||
		m.Write != other.Write || m.Update != other.Update {
		return false
	}
	return m.sameChildren(other)
}

func (m *MsgDef) sameChildren(other *MsgDef) bool {
	if len(m.Fields) != len(other.Fields) || len(m.VirtFields) != len(other.VirtFields) {
		return false
	}
	for i, field := range m.Fields {
		if !field.Equal(other.Fields[i]) {
			return false
		}
	}
	for i, virt := range m.VirtFields {
		if !virt.Equal(other.VirtFields[i]) {
			return false
		}
	}
	return true
}

// Join merges two definitions of the same message that differ only in their
// flags (the daemon lists read and write variants separately) into one with
// the flags OR'd. It returns nil if the definitions name different messages
// or fields.
func (m *MsgDef) Join(other *MsgDef) *MsgDef {
	if m.Circuit != other.Circuit || m.Name != other.Name || !m.sameChildren(other) {
		return nil
	}
	prio := m.Prio
	if prio == 0 {
		prio = other.Prio
	}
	fields := make([]*FieldDef, len(m.Fields))
	for i, field := range m.Fields {
		fields[i] = field.copy()
	}
	return NewMsgDef(m.Circuit, m.Name, fields, m.VirtFields,
		m.Read || other.Read, prio, m.Write || other.Write, m.Update || other.Update)
}

func (m *MsgDef) String() string {
	return fmt.Sprintf("MsgDef(%q, %q, %s)", m.Circuit, m.Name, m.TypeString())
}
