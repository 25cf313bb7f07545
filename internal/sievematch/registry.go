package sievematch

import (
	"fmt"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sievecode"
)

// Core comparator and match-type codes, embedded directly in bytecode when
// Object.Core is true.
const (
	ComparatorOctet        = 0
	ComparatorAsciiCasemap = 1
)

const (
	MatchTypeIs       = 0
	MatchTypeContains = 1
	MatchTypeMatches  = 2
)

// Registry is the per-engine comparator/match-type table, replacing the
// original's process-wide singletons (Design Note 1 / DESIGN.md). A fresh
// Registry may be built per test so isolated engines never share state.
type Registry struct {
	coreComparators map[int]Comparator
	extComparators  map[string]map[int]Comparator
	coreMatchTypes  map[int]MatchType
	extMatchTypes   map[string]map[int]MatchType
}

// NewRegistry returns a registry pre-populated with the two core
// comparators and three core match types (spec §4.3).
func NewRegistry() *Registry {
	return &Registry{
		coreComparators: map[int]Comparator{
			ComparatorOctet:        OctetComparator{},
			ComparatorAsciiCasemap: AsciiCasemapComparator{},
		},
		extComparators: map[string]map[int]Comparator{},
		coreMatchTypes: map[int]MatchType{
			MatchTypeIs:       IsMatchType{},
			MatchTypeContains: ContainsMatchType{},
			MatchTypeMatches:  MatchesMatchType{},
		},
		extMatchTypes: map[string]map[int]MatchType{},
	}
}

// RegisterComparator adds an extension-defined comparator under (ext,
// subCode).
func (r *Registry) RegisterComparator(ext string, subCode int, c Comparator) {
	if r.extComparators[ext] == nil {
		r.extComparators[ext] = map[int]Comparator{}
	}
	r.extComparators[ext][subCode] = c
}

// RegisterMatchType adds an extension-defined match type under (ext,
// subCode). The regex extension is registered this way by engine wiring
// (see internal/sieveext).
func (r *Registry) RegisterMatchType(ext string, subCode int, mt MatchType) {
	if r.extMatchTypes[ext] == nil {
		r.extMatchTypes[ext] = map[int]MatchType{}
	}
	r.extMatchTypes[ext][subCode] = mt
}

// Comparator resolves a comparator Object operand, using bin to translate a
// binary-local extension index back to a stable name. Unknown or
// unregistered combinations fail closed (DESIGN.md Open Question 1) rather
// than silently falling back to a default comparator.
func (r *Registry) Comparator(obj sievecode.Object, bin *sievebin.Binary) (Comparator, error) {
	if obj.Core {
		c, ok := r.coreComparators[obj.Code]
		if !ok {
			return nil, fmt.Errorf("sievematch: unknown core comparator code %d", obj.Code)
		}
		return c, nil
	}
	name, ok := bin.ExtensionName(obj.ExtIndex)
	if !ok {
		return nil, fmt.Errorf("sievematch: comparator references unlinked extension index %d", obj.ExtIndex)
	}
	table, ok := r.extComparators[name]
	if !ok {
		return nil, fmt.Errorf("sievematch: extension %q registers no comparators (failing closed)", name)
	}
	c, ok := table[obj.SubCode]
	if !ok {
		return nil, fmt.Errorf("sievematch: extension %q has no comparator sub-code %d (failing closed)", name, obj.SubCode)
	}
	return c, nil
}

// MatchType resolves a match-type Object operand the same way Comparator
// does.
func (r *Registry) MatchType(obj sievecode.Object, bin *sievebin.Binary) (MatchType, error) {
	if obj.Core {
		mt, ok := r.coreMatchTypes[obj.Code]
		if !ok {
			return nil, fmt.Errorf("sievematch: unknown core match type code %d", obj.Code)
		}
		return mt, nil
	}
	name, ok := bin.ExtensionName(obj.ExtIndex)
	if !ok {
		return nil, fmt.Errorf("sievematch: match type references unlinked extension index %d", obj.ExtIndex)
	}
	table, ok := r.extMatchTypes[name]
	if !ok {
		return nil, fmt.Errorf("sievematch: extension %q registers no match types (failing closed)", name)
	}
	mt, ok := table[obj.SubCode]
	if !ok {
		return nil, fmt.Errorf("sievematch: extension %q has no match-type sub-code %d (failing closed)", name, obj.SubCode)
	}
	return mt, nil
}
