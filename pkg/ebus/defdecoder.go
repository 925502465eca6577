// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// https://github.com/john30/ebusd/wiki/4.1.-Message-definition#message-definition

var reDefType = regexp.MustCompile(`^(r)([1-9]?)`)

// DecodeMsgDef decodes one line of the daemon's message catalog, the output
// of `find -a -F type,circuit,name,fields`, into a MsgDef. The line shape is
//
//	type,circuit,name,[fieldname,part,datatype,divider-or-values,unit,comment]...
//
// with double quotes protecting commas inside comments. Field tuples are six
// wide, the trailing tuple may be short.
func DecodeMsgDef(line string) (*MsgDef, error) {
	values := splitDefLine(line)
	if len(values) < 3 {
		return nil, errors.Errorf("invalid message definition %q", line)
	}
	type_, circuit, name := values[0], values[1], values[2]
	read, prio, write, update := decodeDefType(type_)
	fields, err := decodeFieldDefs(values[3:])
	if err != nil {
		return nil, errors.Wrapf(err, "invalid message definition %q", line)
	}
	return NewMsgDef(circuit, name, fields, virtFieldDefs(fields), read, prio, write, update), nil
}

// splitDefLine splits a catalog line on commas, honoring double-quoted
// segments. A trailing comma yields a final empty value.
func splitDefLine(line string) []string {
	var values []string
	for pos := 0; ; {
		if pos < len(line) && line[pos] == '"' {
			if end := strings.IndexByte(line[pos+1:], '"'); end >= 0 {
				values = append(values, line[pos+1:pos+1+end])
				pos += end + 2
				if pos >= len(line) {
					return values
				}
				if line[pos] == ',' {
					pos++
					if pos == len(line) {
						return append(values, "")
					}
				}
				continue
			}
		}
		end := strings.IndexByte(line[pos:], ',')
		if end < 0 {
			return append(values, line[pos:])
		}
		values = append(values, line[pos:pos+end])
		pos += end + 1
		if pos == len(line) {
			return append(values, "")
		}
	}
}

// decodeDefType translates the catalog type field ("r", "r5", "w", "u",
// "uw", ...) into the four message flags. Priority only applies to readable
// messages. The read and update bits are tracked independently.
func decodeDefType(type_ string) (read bool, prio int, write, update bool) {
	if m := reDefType.FindStringSubmatch(type_); m != nil {
		read = true
		if m[2] != "" {
			prio, _ = strconv.Atoi(m[2])
		}
	}
	write = strings.Contains(type_, "w")
	minLen := 0
	if write {
		minLen = 1
	}
	update = strings.Contains(type_, "u") || (!read && len(type_) > minLen)
	if !read {
		prio = 0
	}
	return read, prio, write, update
}

// decodeFieldDefs builds the field definitions from the catalog values after
// circuit and name. Tuples whose datatype starts with "IGN" are dropped
// entirely and do not advance the payload index (the daemon omits their
// values from payloads as well). Duplicate names get ".0", ".1", ...
// suffixes in encounter order.
func decodeFieldDefs(values []string) ([]*FieldDef, error) {
	switch len(values) % 6 {
	case 0, 3, 4, 5:
	default:
		return nil, fmt.Errorf("unexpected number of field values (%d)", len(values))
	}
	var chunks [][]string
	for i := 0; i < len(values); i += 6 {
		end := i + 6
		if end > len(values) {
			end = len(values)
		}
		chunk := values[i:end]
		if len(chunk) >= 3 && !strings.HasPrefix(chunk[2], "IGN") {
			chunks = append(chunks, chunk)
		}
	}
	dups := make(map[string]int)
	for _, chunk := range chunks {
		dups[chunk[0]]++
	}
	counts := make(map[string]int)
	fields := make([]*FieldDef, 0, len(chunks))
	for idx, chunk := range chunks {
		name := chunk[0]
		if dups[name] > 1 {
			name = fmt.Sprintf("%s.%d", name, counts[chunk[0]])
			counts[chunk[0]]++
		}
		field, err := decodeFieldDef(idx, name, chunk)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func decodeFieldDef(idx int, name string, chunk []string) (*FieldDef, error) {
	datatype := strings.SplitN(chunk[2], ",", 2)[0]
	var dividerValues, unit, comment string
	if len(chunk) > 3 {
		dividerValues = chunk[3]
	}
	if len(chunk) > 4 {
		unit = chunk[4]
	}
	if len(chunk) > 5 {
		comment = chunk[5]
	}
	var type_ Type
	if dividerValues != "" && strings.Contains(dividerValues, "=") {
		// the whole "key=value;..." string is an enumeration replacing
		// the declared type
		type_ = NewEnumType(dividerValues)
	} else {
		divider := 0.0
		if dividerValues != "" {
			n, err := strconv.Atoi(dividerValues)
			if err != nil {
				return nil, fmt.Errorf("invalid divider %q", dividerValues)
			}
			if n < 0 {
				divider = 1 / float64(-n)
			} else {
				divider = float64(n)
			}
		}
		var err error
		type_, err = GetType(datatype, divider)
		if err != nil {
			return nil, err
		}
	}
	return &FieldDef{Idx: idx, Name: name, Type: type_, Unit: unit, Comment: comment}, nil
}

// virtFieldDefs synthesizes the virtual fields of a message: a datetime
// field for the first adjacent date/time pair (gated by a dcfstate field if
// the message has one), and a sensor-gated value for a trailing "sensor"
// status field.
func virtFieldDefs(fields []*FieldDef) []*VirtFieldDef {
	var virts []*VirtFieldDef
	dateIdx, timeIdx, stateIdx := -1, -1, -1
	for i, field := range fields {
		if _, ok := field.Type.(DateType); ok && dateIdx < 0 {
			dateIdx = i
		}
		if _, ok := field.Type.(TimeType); ok && timeIdx < 0 {
			timeIdx = i
		}
		if field.Name == "dcfstate" && stateIdx < 0 {
			stateIdx = i
		}
	}
	// date and time need to be next to each other, just the first pair is
	// found, which should be sufficient
	if dateIdx >= 0 && timeIdx >= 0 && abs(dateIdx-timeIdx) == 1 {
		name := fmt.Sprintf("+%s+%s", fields[dateIdx].Name, fields[timeIdx].Name)
		if stateIdx >= 0 {
			name += "+dcfstate"
		}
		virts = append(virts, &VirtFieldDef{
			Name:     name,
			Type:     DateTimeType{},
			Kind:     VirtDateTime,
			DateIdx:  dateIdx,
			TimeIdx:  timeIdx,
			StateIdx: stateIdx,
		})
	}
	if len(fields) > 1 && fields[len(fields)-1].Name == "sensor" {
		value := fields[0]
		virts = append(virts, &VirtFieldDef{
			Name:      fmt.Sprintf("+%s+sensor", value.Name),
			Type:      value.Type,
			Unit:      value.Unit,
			Kind:      VirtSensor,
			StateIdx:  -1,
			ValueIdx:  0,
			SensorIdx: len(fields) - 1,
		})
	}
	return virts
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
