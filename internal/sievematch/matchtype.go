package sievematch

import (
	"fmt"
	"regexp"
)

// State is opaque per-match-type scratch produced by MatchInit and consumed
// by Match/MatchDeinit. It typically holds the comparator in use and any
// match-type-private precomputation (e.g. compiled regular expressions
// keyed by key index, spec §3 "Match context").
type State interface{}

// MatchType is a predicate family: is, contains, matches, or an
// extension-added one such as regex (spec §4.3).
type MatchType interface {
	Name() string
	// RequiresSubstring reports whether this match type needs a
	// substring-capable comparator.
	RequiresSubstring() bool
	// Validate inspects (and may reject) keys at compile time against the
	// chosen comparator. The regex match type compiles every key here
	// under the comparator's case-folding rule and fails if any does not
	// compile, or if the comparator is not one it knows how to honor; it
	// also rejects non-literal key arguments when the implementation
	// cannot compile at runtime — since this engine only ever receives
	// literal string keys (no runtime variable substitution is wired in;
	// see DESIGN.md), that second rejection never triggers here, which is
	// noted rather than silently assumed.
	Validate(cmp Comparator, keys []string) error
	MatchInit(cmp Comparator, keys []string) (State, error)
	// Match tests value against keys[keyIndex] using the given state.
	Match(state State, value string, key string, keyIndex int) (bool, error)
	// MatchDeinit finalizes the state and returns any captured match
	// values accumulated across the whole match (populated only by
	// matches/regex when capture is enabled).
	MatchDeinit(state State) ([]string, error)
}

type baseState struct {
	cmp      Comparator
	captures []string
}

// IsMatchType is "is": whole-value compare via the comparator.
type IsMatchType struct{}

func (IsMatchType) Name() string                           { return "is" }
func (IsMatchType) RequiresSubstring() bool                { return false }
func (IsMatchType) Validate(Comparator, []string) error    { return nil }
func (IsMatchType) MatchInit(cmp Comparator, _ []string) (State, error) {
	return &baseState{cmp: cmp}, nil
}
func (IsMatchType) Match(st State, value, key string, _ int) (bool, error) {
	s := st.(*baseState)
	return s.cmp.Equal(value, key), nil
}
func (IsMatchType) MatchDeinit(State) ([]string, error) { return nil, nil }

// ContainsMatchType is "contains": scan value for key as a substring,
// naive O(n·m), exactly as specified (spec §4.3).
type ContainsMatchType struct{}

func (ContainsMatchType) Name() string                        { return "contains" }
func (ContainsMatchType) RequiresSubstring() bool             { return true }
func (ContainsMatchType) Validate(Comparator, []string) error { return nil }
func (ContainsMatchType) MatchInit(cmp Comparator, _ []string) (State, error) {
	return &baseState{cmp: cmp}, nil
}
func (ContainsMatchType) Match(st State, value, key string, _ int) (bool, error) {
	s := st.(*baseState)
	return containsUnder(s.cmp, value, key), nil
}
func (ContainsMatchType) MatchDeinit(State) ([]string, error) { return nil, nil }

func containsUnder(cmp Comparator, value, key string) bool {
	if key == "" {
		return true
	}
	for start := 0; start <= len(value); start++ {
		vi, ki := start, 0
		ok := true
		for ki < len(key) {
			matched, va, ka := cmp.CharMatch(value, vi, key, ki)
			if !matched || va == 0 || ka == 0 {
				ok = false
				break
			}
			vi += va
			ki += ka
		}
		if ok && ki >= len(key) {
			return true
		}
	}
	return false
}

// MatchesMatchType is "matches": glob with ? (one character) and * (any
// run), optionally capturing the runs consumed by each wildcard.
type MatchesMatchType struct {
	// Capture enables populating MatchDeinit's return value with the
	// substrings each '*'/'?' consumed on the first successful match,
	// mirroring the spec's match-value capture (enabled only when the
	// active extension set opts in).
	Capture bool
}

func (m MatchesMatchType) Name() string                        { return "matches" }
func (m MatchesMatchType) RequiresSubstring() bool             { return true }
func (m MatchesMatchType) Validate(Comparator, []string) error { return nil }
func (m MatchesMatchType) MatchInit(cmp Comparator, _ []string) (State, error) {
	return &baseState{cmp: cmp}, nil
}
func (m MatchesMatchType) Match(st State, value, key string, _ int) (bool, error) {
	s := st.(*baseState)
	ok, caps := globMatch(s.cmp, value, key)
	if ok && m.Capture {
		s.captures = caps
	}
	return ok, nil
}
func (m MatchesMatchType) MatchDeinit(st State) ([]string, error) {
	s := st.(*baseState)
	return s.captures, nil
}

func globMatch(cmp Comparator, value, pattern string) (bool, []string) {
	return globMatchRec(cmp, value, 0, pattern, 0, nil)
}

func globMatchRec(cmp Comparator, v string, vi int, p string, pi int, captured []string) (bool, []string) {
	for pi < len(p) {
		switch p[pi] {
		case '*':
			for k := 0; k <= len(v)-vi; k++ {
				next := append(append([]string{}, captured...), v[vi:vi+k])
				if ok, caps := globMatchRec(cmp, v, vi+k, p, pi+1, next); ok {
					return true, caps
				}
			}
			return false, nil
		case '?':
			if vi >= len(v) {
				return false, nil
			}
			captured = append(append([]string{}, captured...), v[vi:vi+1])
			vi++
			pi++
		default:
			if vi >= len(v) {
				return false, nil
			}
			matched, va, pa := cmp.CharMatch(v, vi, p, pi)
			if !matched {
				return false, nil
			}
			vi += va
			pi += pa
		}
	}
	if vi == len(v) {
		return true, captured
	}
	return false, nil
}

// RegexMatchType is the "regex" extension match type: keys are compiled at
// Validate time (compile-time validator, spec §4.3) and the compiled
// pattern is cached per key index in State (the "match-type-private
// scratch area" the spec calls out).
type RegexMatchType struct {
	Capture bool
}

func (RegexMatchType) Name() string           { return "regex" }
func (RegexMatchType) RequiresSubstring() bool { return false }

// regexFlavor reports the compiled-pattern prefix to use for cmp's regex
// dialect, mirroring mcht_regex_validate_context/mcht_regex_get: i;octet
// compiles REG_EXTENDED-equivalent (plain, case-sensitive) patterns,
// i;ascii-casemap folds REG_ICASE in, and any other comparator is rejected
// rather than silently falling back to one of these (spec Design Note
// "Open questions" #1, resolved fail-closed).
func regexFlavor(cmp Comparator) (prefix string, ok bool) {
	switch cmp.Name() {
	case "i;octet":
		return "", true
	case "i;ascii-casemap":
		return "(?i)", true
	default:
		return "", false
	}
}

func compileRegexKey(cmp Comparator, key string) (*regexp.Regexp, error) {
	prefix, ok := regexFlavor(cmp)
	if !ok {
		return nil, fmt.Errorf("regex match type: comparator %q has no regex dialect; only i;octet and i;ascii-casemap are supported", cmp.Name())
	}
	return regexp.Compile(prefix + key)
}

func (RegexMatchType) Validate(cmp Comparator, keys []string) error {
	for i, k := range keys {
		if _, err := compileRegexKey(cmp, k); err != nil {
			return fmt.Errorf("regex match type: key %d (%q) does not compile: %w", i, k, err)
		}
	}
	return nil
}

type regexState struct {
	captures []string
	compiled map[int]*regexp.Regexp
}

func (r RegexMatchType) MatchInit(cmp Comparator, keys []string) (State, error) {
	compiled := make(map[int]*regexp.Regexp, len(keys))
	for i, k := range keys {
		re, err := compileRegexKey(cmp, k)
		if err != nil {
			return nil, fmt.Errorf("regex match type: key %d (%q) does not compile: %w", i, k, err)
		}
		compiled[i] = re
	}
	return &regexState{compiled: compiled}, nil
}

func (r RegexMatchType) Match(st State, value, key string, keyIndex int) (bool, error) {
	s := st.(*regexState)
	re, ok := s.compiled[keyIndex]
	if !ok {
		return false, fmt.Errorf("regex match type: no compiled pattern for key index %d", keyIndex)
	}
	loc := re.FindStringSubmatchIndex(value)
	if loc == nil {
		return false, nil
	}
	if r.Capture {
		groups := re.FindStringSubmatch(value)
		s.captures = append([]string(nil), groups...)
	}
	return true, nil
}

func (r RegexMatchType) MatchDeinit(st State) ([]string, error) {
	s := st.(*regexState)
	return s.captures, nil
}
