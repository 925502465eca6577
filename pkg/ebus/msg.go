// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"fmt"
	"reflect"
)

// FieldError marks a single field whose payload could not be decoded into
// its type. It takes the place of the value, the rest of the message stays
// intact.
type FieldError struct {
	Raw    string
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("ERR: %q (%s)", e.Raw, e.Reason)
}

// Field is one decoded value. Exactly one of Def and Virt is set.
type Field struct {
	Def   *FieldDef
	Virt  *VirtFieldDef
	Value interface{}
}

// Name returns the field definition name.
func (f Field) Name() string {
	if f.Virt != nil {
		return f.Virt.Name
	}
	return f.Def.Name
}

// Unit returns the field definition unit.
func (f Field) Unit() string {
	if f.Virt != nil {
		return f.Virt.Unit
	}
	return f.Def.Unit
}

// Comment returns the field definition comment, virtual fields have none.
func (f Field) Comment() string {
	if f.Virt != nil {
		return ""
	}
	return f.Def.Comment
}

// UnitValue renders the value immediately followed by the unit, "27.5°C".
func (f Field) UnitValue() string {
	if _, ok := f.Value.(NotAvailable); ok {
		return NA.String()
	}
	if unit := f.Unit(); unit != "" {
		return fmt.Sprintf("%v%s", f.Value, unit)
	}
	return fmt.Sprintf("%v", f.Value)
}

func (f Field) sameDef(other Field) bool {
	if (f.Virt == nil) != (other.Virt == nil) {
		return false
	}
	if f.Virt != nil {
		return f.Virt.Equal(other.Virt)
	}
	return f.Def.Equal(other.Def)
}

// Message is a decoded daemon event, either a Msg or a BrokenMsg.
type Message interface {
	Ident() string
	Definition() *MsgDef
}

// Msg is a fully decoded message.
type Msg struct {
	MsgDef *MsgDef
	Fields []Field
}

// Ident returns the definition identifier.
func (m *Msg) Ident() string {
	return m.MsgDef.Ident()
}

// Definition returns the message definition.
func (m *Msg) Definition() *MsgDef {
	return m.MsgDef
}

// Equal reports whether two messages carry the same definition and field
// values.
func (m *Msg) Equal(other *Msg) bool {
	if m == nil || other == nil {
		return m == other
	}
	if !m.MsgDef.Equal(other.MsgDef) || len(m.Fields) != len(other.Fields) {
		return false
	}
	for i, field := range m.Fields {
		if !field.sameDef(other.Fields[i]) {
			return false
		}
		if !reflect.DeepEqual(field.Value, other.Fields[i].Value) {
			return false
		}
	}
	return true
}

func (m *Msg) String() string {
	return fmt.Sprintf("Msg(%s, %d fields)", m.Ident(), len(m.Fields))
}

// BrokenMsg is emitted when a payload cannot be parsed as field values at
// all. It carries enough to report and move on.
type BrokenMsg struct {
	MsgDef *MsgDef
	Error  string
}

// Ident returns the definition identifier.
func (m *BrokenMsg) Ident() string {
	return m.MsgDef.Ident()
}

// Definition returns the message definition.
func (m *BrokenMsg) Definition() *MsgDef {
	return m.MsgDef
}

func (m *BrokenMsg) String() string {
	return fmt.Sprintf("BrokenMsg(%s, %q)", m.Ident(), m.Error)
}

// FilterMsg strips msg down to the field selection in defs. It returns nil
// if defs holds no definition with the message's circuit and name, msg
// unchanged if the selected definition equals the received one, and a
// narrowed Msg otherwise. Broken messages pass through unchanged when their
// identifier is selected.
func FilterMsg(msg Message, defs *MsgDefs) Message {
	filtered, _ := filterMsgWithDef(msg, defs)
	return filtered
}

// filterMsgWithDef additionally returns the selection entry the message was
// matched against, which callers use as a stable key.
func filterMsgWithDef(msg Message, defs *MsgDefs) (Message, *MsgDef) {
	received := msg.Definition()
	for _, msgdef := range defs.All() {
		if msgdef.Circuit != received.Circuit || msgdef.Name != received.Name {
			continue
		}
		decoded, ok := msg.(*Msg)
		if !ok {
			return msg, msgdef
		}
		if decoded.MsgDef.Equal(msgdef) {
			return decoded, msgdef
		}
		var fields []Field
		for _, field := range decoded.Fields {
			if field.Def != nil && containsFieldDef(msgdef.Fields, field.Def) {
				fields = append(fields, field)
			} else if field.Virt != nil && containsVirtDef(msgdef.VirtFields, field.Virt) {
				fields = append(fields, field)
			}
		}
		return &Msg{MsgDef: msgdef, Fields: fields}, msgdef
	}
	return nil, nil
}

func containsFieldDef(fields []*FieldDef, field *FieldDef) bool {
	for _, candidate := range fields {
		if candidate.Equal(field) {
			return true
		}
	}
	return false
}

func containsVirtDef(virts []*VirtFieldDef, virt *VirtFieldDef) bool {
	for _, candidate := range virts {
		if candidate.Equal(virt) {
			return true
		}
	}
	return false
}
