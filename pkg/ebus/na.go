// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

// NotAvailable is the type of the NA sentinel. The daemon reports fields it
// has no sample for as "-" (or the date/time equivalents) and those decode to
// NA rather than an error.
type NotAvailable struct{}

// NA marks a field value the daemon has no sample for.
var NA = NotAvailable{}

func (NotAvailable) String() string {
	return "-"
}

// isNA reports whether raw is one of the daemon's not-available sentinels.
// The sentinels decode to NA regardless of the declared field type.
func isNA(raw string) bool {
	switch raw {
	case "-", "-:-", "-:-:-", "-.-.-":
		return true
	}
	return false
}
