// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Type decodes a raw daemon field string into a typed value and encodes it
// back. Concrete types are plain comparable structs so two Type values
// describing the same value domain compare equal with ==.
//
// Decode never fails on the not-available sentinels, those become NA.
type Type interface {
	Decode(raw string) (interface{}, error)
	Encode(value interface{}) (string, error)
}

// Divisible is implemented by types that accept a divider override from a
// field definition.
type Divisible interface {
	WithDivider(divider float64) Type
}

// Date is a day on the calendar, daemon format dd.mm.yyyy.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, d.Month, d.Year)
}

// Time is a time of day. NoSecond marks values from types that carry no
// seconds on the wire, they render as HH:MM.
type Time struct {
	Hour     int
	Minute   int
	Second   int
	NoSecond bool
}

func (t Time) String() string {
	if t.NoSecond {
		return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// DateTime is the merge of a Date and a Time field, synthesized by the
// virtual datetime field.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}

// Hex is a single octet with hex representation.
type Hex uint8

func (h Hex) String() string {
	return fmt.Sprintf("0x%02X", uint8(h))
}

// StrType is a character string, optionally bounded by Length.
type StrType struct {
	Length int // 0 means unbounded
}

func (t StrType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	if t.Length > 0 && len(raw) > t.Length {
		return nil, fmt.Errorf("string %q exceeds length %d", raw, t.Length)
	}
	return raw, nil
}

func (t StrType) Encode(value interface{}) (string, error) {
	return encodeString(value)
}

// HexType is a sequence of hex octets separated by spaces, optionally with a
// fixed Length.
type HexType struct {
	Length int // 0 means unbounded
}

func (t HexType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	parts := strings.Split(raw, " ")
	if t.Length > 0 && len(parts) != t.Length {
		return nil, fmt.Errorf("hex value %q has not expected length of %d", raw, t.Length)
	}
	values := make([]Hex, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex octet %q", part)
		}
		values[i] = Hex(v)
	}
	return values, nil
}

func (t HexType) Encode(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		return "-", nil
	}
	octets, ok := value.([]Hex)
	if !ok {
		return "", fmt.Errorf("cannot encode %v (%T) as hex", value, value)
	}
	parts := make([]string, len(octets))
	for i, octet := range octets {
		parts[i] = fmt.Sprintf("%02x", uint8(octet))
	}
	return strings.Join(parts, " "), nil
}

// IntType is an integer in [Min, Max] with a granularity of 1/Divider. A
// positive divider makes decoded values fractional.
type IntType struct {
	Min     float64
	Max     float64
	Divider float64 // 0 means none
}

// WithDivider returns a copy with divider composed and the limits scaled by
// 1/divider.
func (t IntType) WithDivider(divider float64) Type {
	composed := divider
	if t.Divider != 0 {
		composed = t.Divider * divider
	}
	return IntType{Min: t.Min / divider, Max: t.Max / divider, Divider: composed}
}

func (t IntType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	if t.Divider > 0 {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return value, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	return value, nil
}

func (t IntType) Encode(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		return "-", nil
	}
	f, err := toFloat(value)
	if err != nil {
		return "", err
	}
	if t.Divider > 0 {
		return strconv.Itoa(int(math.Round(f * t.Divider))), nil
	}
	return strconv.Itoa(int(math.Round(f))), nil
}

// BoolType decodes the strings "0" and "1".
type BoolType struct{}

func (t BoolType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	switch raw {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid bool %q", raw)
	}
	return value != 0, nil
}

func (t BoolType) Encode(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		return "-", nil
	}
	b, ok := value.(bool)
	if !ok {
		return "", fmt.Errorf("cannot encode %v (%T) as bool", value, value)
	}
	if b {
		return "1", nil
	}
	return "0", nil
}

// FloatType is a plain base-10 float.
type FloatType struct{}

func (t FloatType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid float %q", raw)
	}
	return value, nil
}

func (t FloatType) Encode(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		return "-", nil
	}
	f, err := toFloat(value)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// DateType decodes dd.mm.yyyy.
type DateType struct{}

func (t DateType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	parsed, err := time.Parse("2.1.2006", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	return Date{Year: parsed.Year(), Month: int(parsed.Month()), Day: parsed.Day()}, nil
}

func (t DateType) Encode(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		return "-.-.-", nil
	}
	d, ok := value.(Date)
	if !ok {
		return "", fmt.Errorf("cannot encode %v (%T) as date", value, value)
	}
	return d.String(), nil
}

// TimeType decodes HH:MM:SS, or HH:MM when NoSecond is set. MinRes remembers
// the minute resolution of truncated time types for round-trip display.
type TimeType struct {
	MinRes   int // 0 means full minute resolution
	NoSecond bool
}

func (t TimeType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	layout := "15:04:05"
	if t.NoSecond {
		layout = "15:04"
	}
	parsed, err := time.Parse(layout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q", raw)
	}
	return Time{Hour: parsed.Hour(), Minute: parsed.Minute(), Second: parsed.Second(), NoSecond: t.NoSecond}, nil
}

func (t TimeType) Encode(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		if t.NoSecond {
			return "-:-", nil
		}
		return "-:-:-", nil
	}
	v, ok := value.(Time)
	if !ok {
		return "", fmt.Errorf("cannot encode %v (%T) as time", value, value)
	}
	v.NoSecond = t.NoSecond
	return v.String(), nil
}

// DateTimeType is the type of the synthesized datetime virtual field. It
// never appears on the wire on its own.
type DateTimeType struct{}

func (t DateTimeType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	return nil, fmt.Errorf("datetime %q is synthesized, not decoded", raw)
}

func (t DateTimeType) Encode(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		return "-", nil
	}
	return fmt.Sprintf("%v", value), nil
}

// WeekdayType passes the daemon's weekday name through.
type WeekdayType struct{}

func (t WeekdayType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	return raw, nil
}

func (t WeekdayType) Encode(value interface{}) (string, error) {
	return encodeString(value)
}

// PinType passes the daemon's PIN rendering through.
type PinType struct{}

func (t PinType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	return raw, nil
}

func (t PinType) Encode(value interface{}) (string, error) {
	return encodeString(value)
}

// EnumType holds the raw "key=value;..." enumeration from the field
// definition. Values pass through decode unchanged.
type EnumType struct {
	raw string
}

// NewEnumType builds an EnumType from the raw "key=value;..." definition
// string.
func NewEnumType(raw string) EnumType {
	return EnumType{raw: raw}
}

// Values returns the enumeration value names in definition order.
func (t EnumType) Values() []string {
	var values []string
	for _, pair := range strings.Split(t.raw, ";") {
		if pair == "" {
			continue
		}
		if idx := strings.Index(pair, "="); idx >= 0 {
			values = append(values, pair[idx+1:])
		} else {
			values = append(values, pair)
		}
	}
	return values
}

func (t EnumType) Decode(raw string) (interface{}, error) {
	if isNA(raw) {
		return NA, nil
	}
	return raw, nil
}

func (t EnumType) Encode(value interface{}) (string, error) {
	return encodeString(value)
}

func encodeString(value interface{}) (string, error) {
	if _, ok := value.(NotAvailable); ok {
		return "-", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("cannot encode %v (%T) as string", value, value)
	}
	return s, nil
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, fmt.Errorf("cannot encode %v (%T) as number", value, value)
}

var reBit = regexp.MustCompile(`^BI\d(:(\d))?$`)

// typeMap is the process-wide type registry. The static entries cover the
// daemon's fixed-name types, parameterized families (STR:n, NTS:n, HEX:n,
// BIn:w) are grown lazily under typeMu.
var (
	typeMu  sync.RWMutex
	typeMap = map[string]Type{
		// BDA       BCD date                      dd.mm.yyyy               day first, including weekday, Sunday=0x06
		// BDA:3     BCD date                      dd.mm.yyyy               day first, excluding weekday
		// HDA       hex date                      dd.mm.yyyy               day first, including weekday, Sunday=0x07
		// HDA:3     hex date                      dd.mm.yyyy               day first, excluding weekday
		"BDA":   DateType{},
		"BDA:3": DateType{},
		"HDA":   DateType{},
		"HDA:3": DateType{},
		// BTI       BCD time                      hh:mm:ss                 seconds first
		// HTI       hex time                      hh:mm:ss                 hours first
		// VTI       hex time                      hh:mm:ss                 seconds first
		"BTI": TimeType{},
		"HTI": TimeType{},
		"VTI": TimeType{},
		// BTM       BCD time                      hh:mm                    minutes first
		// HTM       hex time                      hh:mm                    hours first
		// VTM       hex time                      hh:mm                    minutes first
		// MIN       time in minutes               hh:mm                    minutes since last midnight
		// TTM       truncated time                hh:m0                    multiple of 10 minutes
		// TTH       truncated time                hh:m0                    multiple of 30 minutes
		// TTQ       truncated time                hh:mm                    multiple of 15 minutes
		"BTM": TimeType{NoSecond: true},
		"HTM": TimeType{NoSecond: true},
		"VTM": TimeType{NoSecond: true},
		"MIN": TimeType{NoSecond: true},
		"TTM": TimeType{MinRes: 10, NoSecond: true},
		"TTH": TimeType{MinRes: 30, NoSecond: true},
		"TTQ": TimeType{MinRes: 15, NoSecond: true},
		// BDY       weekday                       Mon...Sun                Sunday=0x06
		// HDY       weekday                       Mon...Sun                Sunday=0x07
		"BDY": WeekdayType{},
		"HDY": WeekdayType{},
		// BCD       unsigned BCD                  0...99
		// BCD:2     unsigned BCD                  0...9999
		// BCD:3     unsigned BCD                  0...999999
		// BCD:4     unsigned BCD                  0...99999999
		"BCD":   IntType{Min: 0, Max: 99},
		"BCD:2": IntType{Min: 0, Max: 9999},
		"BCD:3": IntType{Min: 0, Max: 999999},
		"BCD:4": IntType{Min: 0, Max: 99999999},
		// PIN       unsigned BCD                  0000...9999
		"PIN": PinType{},
		// UCH       unsigned integer              0...254
		"UCH": IntType{Min: 0, Max: 254},
		// SCH       signed integer               -127...127
		// D1B       signed integer               -127...127
		"SCH": IntType{Min: -127, Max: 127},
		"D1B": IntType{Min: -127, Max: 127},
		// D1C       unsigned number               0.0...100.0              fraction 1/2 = divisor 2
		"D1C": IntType{Min: 0, Max: 100, Divider: 2},
		// D2B       signed number                -127.99...127.99          fraction 1/256 = divisor 256
		"D2B": IntType{Min: -127.99, Max: 127.99, Divider: 256},
		// D2C       signed number                -2047.9...2047.9          fraction 1/16 = divisor 16
		"D2C": IntType{Min: -2047.9, Max: 2047.9, Divider: 16},
		// FLT       signed number                -32.767...32.767         low byte first, fraction 1/1000 = divisor 1000
		// FLR       signed number reverse        -32.767...32.767         high byte first, fraction 1/1000 = divisor 1000
		"FLT": IntType{Min: -32.767, Max: 32.767, Divider: 1000},
		"FLR": IntType{Min: -32.767, Max: 32.767, Divider: 1000},
		// EXP       signed float number          -3.0e38...3.0e38          low byte first
		// EXR       signed float number reverse  -3.0e38...3.0e38          high byte first
		"EXP": FloatType{},
		"EXR": FloatType{},
		// UIN       unsigned integer              0...65534                low byte first
		// UIR       unsigned integer reverse      0...65534                high byte first
		"UIN": IntType{Min: 0, Max: 65534},
		"UIR": IntType{Min: 0, Max: 65534},
		// SIN       signed integer               -32767...32767            low byte first
		// SIR       signed integer reverse       -32767...32767            high byte first
		"SIN": IntType{Min: -32767, Max: 32767},
		"SIR": IntType{Min: -32767, Max: 32767},
		// U3N       unsigned 3 byte int           0...16777214             low byte first
		// U3R       unsigned 3 byte int reverse   0...16777214             high byte first
		"U3N": IntType{Min: 0, Max: 16777214},
		"U3R": IntType{Min: 0, Max: 16777214},
		// S3N       signed 3 byte int            -8388607...8388607        low byte first
		// S3R       signed 3 byte int reverse    -8388607...8388607        high byte first
		"S3N": IntType{Min: -8388607, Max: 8388607},
		"S3R": IntType{Min: -8388607, Max: 8388607},
		// ULG       unsigned integer              0...4294967294           low byte first
		// ULR       unsigned integer reverse      0...4294967294           high byte first
		"ULG": IntType{Min: 0, Max: 4294967294},
		"ULR": IntType{Min: 0, Max: 4294967294},
		// SLG       signed integer               -2147483647...2147483647  low byte first
		// SLR       signed integer reverse       -2147483647...2147483647  high byte first
		"SLG": IntType{Min: -2147483647, Max: 2147483647},
		"SLR": IntType{Min: -2147483647, Max: 2147483647},
	}
)

// GetType returns the Type registered for name, creating entries of the
// parameterized families on demand. A non-zero divider is composed onto the
// returned type.
func GetType(name string, divider float64) (Type, error) {
	typeMu.RLock()
	type_, ok := typeMap[name]
	typeMu.RUnlock()
	if !ok {
		type_, ok = makeType(name)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", name)
		}
		// a late-writer race is benign, entries are value-equal
		typeMu.Lock()
		typeMap[name] = type_
		typeMu.Unlock()
	}
	if divider != 0 {
		divisible, ok := type_.(Divisible)
		if !ok {
			return nil, fmt.Errorf("type %q does not take a divider", name)
		}
		type_ = divisible.WithDivider(divider)
	}
	return type_, nil
}

func makeType(name string) (Type, bool) {
	// STR       character string              Hello
	// NTS       character string              Hello
	if strings.HasPrefix(name, "STR:") || strings.HasPrefix(name, "NTS:") {
		length := name[strings.Index(name, ":")+1:]
		if length == "*" {
			return StrType{}, true
		}
		n, err := strconv.Atoi(length)
		if err != nil {
			return nil, false
		}
		return StrType{Length: n}, true
	}
	// HEX       hex digit string              hex octets separated by space
	if strings.HasPrefix(name, "HEX:") {
		length := name[len("HEX:"):]
		if length == "*" {
			return HexType{}, true
		}
		n, err := strconv.Atoi(length)
		if err != nil {
			return nil, false
		}
		return HexType{Length: n}, true
	}
	// BI0:7     bit 0                         0...1
	if m := reBit.FindStringSubmatch(name); m != nil {
		width := 1
		if m[2] != "" {
			width, _ = strconv.Atoi(m[2])
		}
		if width > 1 {
			return IntType{Min: 0, Max: math.Pow(2, float64(width)) - 1}, true
		}
		return BoolType{}, true
	}
	return nil, false
}
