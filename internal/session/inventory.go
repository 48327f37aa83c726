// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "fmt"

// Inventory resolves the keys a role may open.
type Inventory interface {
	KeysFor(role Role) []KeyRecord
}

// CabinetKey is a physical slot in the cabinet.
type CabinetKey struct {
	Name string
	Slot int
}

// Cabinet is the default Inventory: privileged roles get every slot in
// cabinet order, everyone else gets the standard slots in the listed order.
type Cabinet struct {
	keys     []CabinetKey
	standard []int
}

// NewCabinet validates slot uniqueness and that every standard slot exists.
func NewCabinet(keys []CabinetKey, standardSlots []int) (*Cabinet, error) {
	seen := make(map[int]bool, len(keys))
	for _, k := range keys {
		if k.Slot <= 0 {
			return nil, fmt.Errorf("cabinet key %q: slot must be positive, got %d", k.Name, k.Slot)
		}
		if seen[k.Slot] {
			return nil, fmt.Errorf("cabinet key %q: duplicate slot %d", k.Name, k.Slot)
		}
		seen[k.Slot] = true
	}
	dup := make(map[int]bool, len(standardSlots))
	for _, slot := range standardSlots {
		if !seen[slot] {
			return nil, fmt.Errorf("standard slot %d not present in cabinet", slot)
		}
		if dup[slot] {
			return nil, fmt.Errorf("standard slot %d listed twice", slot)
		}
		dup[slot] = true
	}
	return &Cabinet{
		keys:     append([]CabinetKey(nil), keys...),
		standard: append([]int(nil), standardSlots...),
	}, nil
}

// DefaultCabinet is the eight-slot cabinet with a three-slot standard set.
func DefaultCabinet() *Cabinet {
	c, err := NewCabinet(DefaultCabinetKeys(), DefaultStandardSlots())
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCabinetKeys lists the factory slot layout.
func DefaultCabinetKeys() []CabinetKey {
	return []CabinetKey{
		{Name: "Main Office Entrance", Slot: 1},
		{Name: "Server Room A-1", Slot: 2},
		{Name: "Lab Section 3B", Slot: 3},
		{Name: "Storage Unit #7", Slot: 4},
		{Name: "Conference Room 1", Slot: 5},
		{Name: "Data Center Main", Slot: 6},
		{Name: "Research Lab G", Slot: 7},
		{Name: "Executive Office", Slot: 8},
	}
}

// DefaultStandardSlots lists the slots a standard user may open.
func DefaultStandardSlots() []int {
	return []int{1, 5, 4}
}

// KeysFor returns fresh, available records for the role.
func (c *Cabinet) KeysFor(role Role) []KeyRecord {
	if role.Privileged() {
		out := make([]KeyRecord, 0, len(c.keys))
		for _, k := range c.keys {
			out = append(out, KeyRecord{Name: k.Name, Slot: k.Slot, Status: KeyAvailable})
		}
		return out
	}

	bySlot := make(map[int]CabinetKey, len(c.keys))
	for _, k := range c.keys {
		bySlot[k.Slot] = k
	}
	out := make([]KeyRecord, 0, len(c.standard))
	for _, slot := range c.standard {
		k := bySlot[slot]
		out = append(out, KeyRecord{Name: k.Name, Slot: k.Slot, Status: KeyAvailable})
	}
	return out
}

// Slots returns every slot in cabinet order.
func (c *Cabinet) Slots() []CabinetKey {
	return append([]CabinetKey(nil), c.keys...)
}
