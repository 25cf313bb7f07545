package sievematch

import "fmt"

// Context is the transient per-test object described in spec §3 ("Match
// context"): the selected match type and comparator, the key list, and a
// count of values already observed.
type Context struct {
	mt       MatchType
	cmp      Comparator
	keys     []string
	state    State
	skip     int
	observed int
}

// Begin starts a match context for matchType against comparator and the
// given keys, implementing the "begin(match_type, comparator, key_list)"
// entry point of spec §4.3. It fails validation when matchType requires
// substring behavior the comparator does not support.
func Begin(mt MatchType, cmp Comparator, keys []string) (*Context, error) {
	if mt.RequiresSubstring() && !cmp.SupportsSubstring() {
		return nil, fmt.Errorf("match type %q requires a substring-capable comparator, but %q does not support substrings", mt.Name(), cmp.Name())
	}
	if err := mt.Validate(cmp, keys); err != nil {
		return nil, err
	}
	state, err := mt.MatchInit(cmp, keys)
	if err != nil {
		return nil, err
	}
	return &Context{mt: mt, cmp: cmp, keys: keys, state: state}, nil
}

// MatchValue iterates keys left to right calling Match(value, key,
// keyIndex); the first true result terminates and yields true (spec
// §4.3, "Matching protocol").
func (c *Context) MatchValue(value string) (bool, error) {
	c.observed++
	for i, key := range c.keys {
		ok, err := c.mt.Match(c.state, value, key, i)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Observed reports how many candidate values MatchValue has been called
// with so far.
func (c *Context) Observed() int { return c.observed }

// Skip advances past n omitted capture groups so indices stay stable, as
// spec §4.3 requires of implementations that support capture.
func (c *Context) Skip(n int) { c.skip += n }

// End finalizes the context and returns any captured match values (only
// populated by matches/regex when capture is enabled).
func (c *Context) End() ([]string, error) {
	caps, err := c.mt.MatchDeinit(c.state)
	if err != nil {
		return nil, err
	}
	if c.skip > 0 {
		if c.skip >= len(caps) {
			return nil, nil
		}
		caps = caps[c.skip:]
	}
	return caps, nil
}
