// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"reflect"
	"testing"
)

func TestGetTypeStatic(t *testing.T) {
	data := []struct {
		name     string
		expected Type
	}{
		{"UCH", IntType{Min: 0, Max: 254}},
		{"D2C", IntType{Min: -2047.9, Max: 2047.9, Divider: 16}},
		{"EXP", FloatType{}},
		{"BDA", DateType{}},
		{"BTI", TimeType{}},
		{"TTM", TimeType{MinRes: 10, NoSecond: true}},
		{"BDY", WeekdayType{}},
		{"PIN", PinType{}},
		{"SLR", IntType{Min: -2147483647, Max: 2147483647}},
	}
	for _, d := range data {
		type_, err := GetType(d.name, 0)
		if err != nil {
			t.Fatalf("GetType(%q) returned error: %v", d.name, err)
		}
		if type_ != d.expected {
			t.Fatalf("GetType(%q) returned %#v, expected %#v", d.name, type_, d.expected)
		}
	}
}

func TestGetTypeParameterized(t *testing.T) {
	data := []struct {
		name     string
		expected Type
	}{
		{"STR:10", StrType{Length: 10}},
		{"STR:*", StrType{}},
		{"NTS:5", StrType{Length: 5}},
		{"HEX:4", HexType{Length: 4}},
		{"HEX:*", HexType{}},
		{"BI3:2", IntType{Min: 0, Max: 3}},
		{"BI0:1", BoolType{}},
		{"BI7", BoolType{}},
	}
	for _, d := range data {
		type_, err := GetType(d.name, 0)
		if err != nil {
			t.Fatalf("GetType(%q) returned error: %v", d.name, err)
		}
		if type_ != d.expected {
			t.Fatalf("GetType(%q) returned %#v, expected %#v", d.name, type_, d.expected)
		}
	}
}

func TestGetTypeUnknown(t *testing.T) {
	if _, err := GetType("NOPE", 0); err == nil {
		t.Fatal("GetType(NOPE) did not fail")
	}
	if _, err := GetType("BDA", 4); err == nil {
		t.Fatal("GetType(BDA) accepted a divider")
	}
}

func TestWithDivider(t *testing.T) {
	type_, err := GetType("UCH", 10)
	if err != nil {
		t.Fatal(err)
	}
	expected := IntType{Min: 0, Max: 25.4, Divider: 10}
	if type_ != expected {
		t.Fatalf("got %#v, expected %#v", type_, expected)
	}

	// dividers compose multiplicatively
	type_, err = GetType("D2C", 4)
	if err != nil {
		t.Fatal(err)
	}
	composed := type_.(IntType)
	if composed.Divider != 64 {
		t.Fatalf("composed divider is %v, expected 64", composed.Divider)
	}

	// a negative catalog divider means 1/N
	type_, err = GetType("UCH", 1.0/10)
	if err != nil {
		t.Fatal(err)
	}
	scaled := type_.(IntType)
	if scaled.Min != 0 || scaled.Max != 2540 {
		t.Fatalf("inverse divider limits are [%v, %v]", scaled.Min, scaled.Max)
	}
}

func TestDecode(t *testing.T) {
	data := []struct {
		typename string
		raw      string
		expected interface{}
	}{
		{"UCH", "9", 9},
		{"SCH", "-12", -12},
		{"D2C", "27.5", 27.5},
		{"EXP", "4.500", 4.5},
		{"UCH", "-", NA},
		{"BDA", "14.12.2019", Date{Year: 2019, Month: 12, Day: 14}},
		{"BDA", "-.-.-", NA},
		{"BTI", "20:47:01", Time{Hour: 20, Minute: 47, Second: 1}},
		{"BTI", "-:-:-", NA},
		{"TTM", "21:30", Time{Hour: 21, Minute: 30, NoSecond: true}},
		{"TTM", "-:-", NA},
		{"BDY", "Mon", "Mon"},
		{"STR:10", "hello", "hello"},
		{"HEX:2", "4a 30", []Hex{0x4A, 0x30}},
	}
	for _, d := range data {
		type_, err := GetType(d.typename, 0)
		if err != nil {
			t.Fatal(err)
		}
		value, err := type_.Decode(d.raw)
		if err != nil {
			t.Fatalf("%s.Decode(%q) returned error: %v", d.typename, d.raw, err)
		}
		if !reflect.DeepEqual(value, d.expected) {
			t.Fatalf("%s.Decode(%q) = %#v, expected %#v", d.typename, d.raw, value, d.expected)
		}
	}
}

func TestDecodeBool(t *testing.T) {
	type_ := BoolType{}
	for raw, expected := range map[string]interface{}{"0": false, "1": true, "-": NA} {
		value, err := type_.Decode(raw)
		if err != nil {
			t.Fatal(err)
		}
		if value != expected {
			t.Fatalf("BoolType.Decode(%q) = %v", raw, value)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	data := []struct {
		typename string
		raw      string
	}{
		{"UCH", "x"},
		{"D2C", "warm"},
		{"BDA", "2019-12-14"},
		{"BTI", "late"},
		{"HEX:2", "4a"},
		{"HEX:2", "zz 30"},
	}
	for _, d := range data {
		type_, err := GetType(d.typename, 0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := type_.Decode(d.raw); err == nil {
			t.Fatalf("%s.Decode(%q) did not fail", d.typename, d.raw)
		}
	}
}

func TestEncode(t *testing.T) {
	data := []struct {
		typename string
		value    interface{}
		expected string
	}{
		{"UCH", 9, "9"},
		{"UCH", NA, "-"},
		{"D2C", 27.5, "440"}, // logical value times divider
		{"EXP", 4.5, "4.5"},
		{"BDA", Date{Year: 2019, Month: 12, Day: 14}, "14.12.2019"},
		{"BDA", NA, "-.-.-"},
		{"BTI", Time{Hour: 20, Minute: 47, Second: 1}, "20:47:01"},
		{"BTI", NA, "-:-:-"},
		{"TTM", Time{Hour: 21, Minute: 30}, "21:30"},
		{"TTM", NA, "-:-"},
		{"HEX:2", []Hex{0x4A, 0x30}, "4a 30"},
		{"STR:10", "hello", "hello"},
	}
	for _, d := range data {
		type_, err := GetType(d.typename, 0)
		if err != nil {
			t.Fatal(err)
		}
		encoded, err := type_.Encode(d.value)
		if err != nil {
			t.Fatalf("%s.Encode(%v) returned error: %v", d.typename, d.value, err)
		}
		if encoded != d.expected {
			t.Fatalf("%s.Encode(%v) = %q, expected %q", d.typename, d.value, encoded, d.expected)
		}
	}
}

func TestEncodeBool(t *testing.T) {
	type_ := BoolType{}
	for value, expected := range map[bool]string{false: "0", true: "1"} {
		encoded, err := type_.Encode(value)
		if err != nil {
			t.Fatal(err)
		}
		if encoded != expected {
			t.Fatalf("BoolType.Encode(%v) = %q", value, encoded)
		}
	}
}

// decode(encode(v)) holds for lossless types
func TestRoundTrip(t *testing.T) {
	data := []struct {
		typename string
		value    interface{}
	}{
		{"UCH", 17},
		{"SIN", -3000},
		{"BDA", Date{Year: 2020, Month: 1, Day: 2}},
		{"BTI", Time{Hour: 6, Minute: 5, Second: 4}},
		{"STR:10", "abc"},
	}
	for _, d := range data {
		type_, err := GetType(d.typename, 0)
		if err != nil {
			t.Fatal(err)
		}
		encoded, err := type_.Encode(d.value)
		if err != nil {
			t.Fatal(err)
		}
		decoded, err := type_.Decode(encoded)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(decoded, d.value) {
			t.Fatalf("%s round trip %v -> %q -> %v", d.typename, d.value, encoded, decoded)
		}
	}
}

func TestEnumType(t *testing.T) {
	type_ := NewEnumType("0=off;1=on")
	values := type_.Values()
	if !reflect.DeepEqual(values, []string{"off", "on"}) {
		t.Fatalf("Values() = %v", values)
	}
	value, err := type_.Decode("on")
	if err != nil || value != "on" {
		t.Fatalf("Decode(on) = %v, %v", value, err)
	}
	if type_ != NewEnumType("0=off;1=on") {
		t.Fatal("equal enums do not compare equal")
	}
}

func TestValueStrings(t *testing.T) {
	data := []struct {
		value    interface{}
		expected string
	}{
		{Date{Year: 2019, Month: 12, Day: 14}, "14.12.2019"},
		{Time{Hour: 20, Minute: 47, Second: 1}, "20:47:01"},
		{Time{Hour: 21, Minute: 30, NoSecond: true}, "21:30"},
		{DateTime{2019, 12, 14, 20, 47, 1}, "2019-12-14T20:47:01"},
		{Hex(0x4A), "0x4A"},
		{NA, "-"},
	}
	for _, d := range data {
		if got := fmt_(d.value); got != d.expected {
			t.Fatalf("String() = %q, expected %q", got, d.expected)
		}
	}
}

func fmt_(value interface{}) string {
	type stringer interface{ String() string }
	return value.(stringer).String()
}
