package sievevm

import "github.com/funvibe/sievecore/internal/sieveresult"

// Envelope is the message-side collaborator handed to an Interpreter at
// construction (spec §2: "the binary is opened... handed to an
// interpreter (L3) together with a message envelope and a script
// environment"). Header lookups power the core header/address/size test
// opcodes; Message carries the identity/origin-mailbox fields the result
// pipeline needs for dedup and the redundant-store optimization.
type Envelope struct {
	Message *sieveresult.Message
	// Headers maps a header name to its values in wire order. Keys may be
	// in any case: HeaderValues compares names ASCII-case-insensitively.
	// A header repeated across the message (e.g. multiple "Received"
	// lines) yields multiple entries.
	Headers map[string][]string
	// Size is the total message size in octets, consulted by the core
	// "size" test.
	Size int64
}

// HeaderValues returns the values of name (case-insensitively), or nil if
// the header is absent.
func (e *Envelope) HeaderValues(name string) []string {
	if e == nil || e.Headers == nil {
		return nil
	}
	lname := lowerASCII(name)
	if v, ok := e.Headers[lname]; ok {
		return v
	}
	for k, v := range e.Headers {
		if lowerASCII(k) == lname {
			return v
		}
	}
	return nil
}

func lowerASCII(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
