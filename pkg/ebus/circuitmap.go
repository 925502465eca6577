// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CircuitMap maps circuit names to display names. A numbered instance
// ("bai.3") falls back to the base name with the suffix appended
// ("Heater#3"), unmapped names map to themselves.
type CircuitMap struct {
	names map[string]string
	order []string
}

// NewCircuitMap returns a map preloaded with the common circuits.
func NewCircuitMap() *CircuitMap {
	c := &CircuitMap{names: make(map[string]string)}
	c.Add("broadcast", "*")
	c.Add("bai", "Heater")
	c.Add("mc", "Mixer")
	c.Add("hwc", "Water")
	return c
}

// Add stores a mapping, overriding an earlier one.
func (c *CircuitMap) Add(circuit, name string) {
	if _, ok := c.names[circuit]; !ok {
		c.order = append(c.order, circuit)
	}
	c.names[circuit] = name
}

// Get returns the display name for circuit.
func (c *CircuitMap) Get(circuit string) string {
	if name, ok := c.names[circuit]; ok {
		return name
	}
	if idx := strings.Index(circuit, "."); idx >= 0 {
		if name, ok := c.names[circuit[:idx]]; ok {
			return name + "#" + circuit[idx+1:]
		}
	}
	return circuit
}

// Each calls fn for every mapping in insertion order.
func (c *CircuitMap) Each(fn func(circuit, name string)) {
	for _, circuit := range c.order {
		fn(circuit, c.names[circuit])
	}
}

// LoadFile merges mappings from a YAML file of "circuit: name" pairs.
func (c *CircuitMap) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "circuit map %s", path)
	}
	var names map[string]string
	if err := yaml.Unmarshal(raw, &names); err != nil {
		return errors.Wrapf(err, "circuit map %s", path)
	}
	for circuit, name := range names {
		c.Add(circuit, name)
	}
	return nil
}
