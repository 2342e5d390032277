// Package currency implements the denomination-optimal conversion between
// abstract treasury amounts and discrete currency units. The converter is
// pure: it has no notion of stacks or inventories, only (denomination, count)
// pairs. Stacking disbursed units into inventory slots is the caller's job.
package currency

import (
	"fmt"
	"math"
)

// Denomination is a fixed-value discrete currency unit.
type Denomination struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Unit is a count of one denomination in a decomposed amount.
type Unit struct {
	Denomination Denomination `json:"denomination"`
	Count        int64        `json:"count"`
}

// Converter decomposes amounts into units greedily, largest denomination
// first. For a denomination chain where each value is an integer multiple
// of the next smaller one, the greedy decomposition minimizes the total
// unit count.
type Converter struct {
	denoms []Denomination // ordered largest to smallest
}

// DefaultDenominations is the gold chain used by the host economy:
// one block is nine ingots, one ingot is nine nuggets.
func DefaultDenominations() []Denomination {
	return []Denomination{
		{Name: "block", Value: 81},
		{Name: "ingot", Value: 9},
		{Name: "nugget", Value: 1},
	}
}

// New builds a converter after validating the denomination set: values must
// be strictly descending, each divisible by its successor (the greedy
// optimality condition), and the smallest must be 1 so every non-negative
// amount is representable.
func New(denoms []Denomination) (*Converter, error) {
	if len(denoms) == 0 {
		return nil, fmt.Errorf("currency: at least one denomination required")
	}
	for i, d := range denoms {
		if d.Value <= 0 {
			return nil, fmt.Errorf("currency: denomination %q has non-positive value %d", d.Name, d.Value)
		}
		if i > 0 {
			prev := denoms[i-1]
			if d.Value >= prev.Value {
				return nil, fmt.Errorf("currency: denominations must be strictly descending (%q=%d after %q=%d)",
					d.Name, d.Value, prev.Name, prev.Value)
			}
			if prev.Value%d.Value != 0 {
				return nil, fmt.Errorf("currency: %q=%d is not a multiple of %q=%d",
					prev.Name, prev.Value, d.Name, d.Value)
			}
		}
	}
	if denoms[len(denoms)-1].Value != 1 {
		return nil, fmt.Errorf("currency: smallest denomination must have value 1, got %d",
			denoms[len(denoms)-1].Value)
	}
	out := make([]Denomination, len(denoms))
	copy(out, denoms)
	return &Converter{denoms: out}, nil
}

// MustDefault returns a converter over DefaultDenominations.
// The default set is statically valid.
func MustDefault() *Converter {
	c, err := New(DefaultDenominations())
	if err != nil {
		panic(err)
	}
	return c
}

// Denominations returns the converter's denomination set, largest first.
func (c *Converter) Denominations() []Denomination {
	out := make([]Denomination, len(c.denoms))
	copy(out, c.denoms)
	return out
}

// ToUnits decomposes a non-negative amount into units, largest denomination
// first. Every denomination appears in the result, including zero counts,
// so callers can render a fixed column per denomination.
func (c *Converter) ToUnits(amount int64) ([]Unit, error) {
	if amount < 0 {
		return nil, fmt.Errorf("currency: cannot decompose negative amount %d", amount)
	}
	units := make([]Unit, 0, len(c.denoms))
	remaining := amount
	for _, d := range c.denoms {
		count := remaining / d.Value
		remaining %= d.Value
		units = append(units, Unit{Denomination: d, Count: count})
	}
	// remaining is zero here because the smallest denomination is 1
	return units, nil
}

// FromUnits sums a unit sequence back into an amount. Rejects negative
// counts and sums that would overflow int64.
func (c *Converter) FromUnits(units []Unit) (int64, error) {
	var total int64
	for _, u := range units {
		if u.Count < 0 {
			return 0, fmt.Errorf("currency: negative count %d for %q", u.Count, u.Denomination.Name)
		}
		if u.Denomination.Value <= 0 {
			return 0, fmt.Errorf("currency: invalid denomination value %d", u.Denomination.Value)
		}
		if u.Count > 0 && u.Denomination.Value > math.MaxInt64/u.Count {
			return 0, fmt.Errorf("currency: unit value overflows (%d x %d)", u.Count, u.Denomination.Value)
		}
		v := u.Count * u.Denomination.Value
		if total > math.MaxInt64-v {
			return 0, fmt.Errorf("currency: amount overflows int64")
		}
		total += v
	}
	return total, nil
}
