package sievevm

import (
	"strings"

	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sievematch"
)

// runMatch reads the (comparator, match-type) operand pair common to
// every core test opcode, builds a match context against keys, and
// evaluates it against values, implementing the "matching protocol" of
// spec §4.3: the aggregate truth value is true as soon as any candidate
// value matches. Any resolution/validation/match error is reported as
// BinCorrupt — a well-formed binary was already validated by the
// generator, so a failure here means the bytecode cannot be trusted
// (spec §4.3, "may return a negative value meaning binary or input
// corrupt").
func (i *Interpreter) runMatch(keys []string, values []string) (bool, sieveerr.Status) {
	cmpObj, err := i.r.ReadObject(sievecode.ClassComparator)
	if err != nil {
		i.reportCorrupt("reading comparator operand: %v", err)
		return false, sieveerr.BinCorrupt
	}
	mtObj, err := i.r.ReadObject(sievecode.ClassMatchType)
	if err != nil {
		i.reportCorrupt("reading match-type operand: %v", err)
		return false, sieveerr.BinCorrupt
	}
	cmp, err := i.registry.Comparator(cmpObj, i.bin)
	if err != nil {
		i.reportCorrupt("resolving comparator: %v", err)
		return false, sieveerr.BinCorrupt
	}
	mt, err := i.registry.MatchType(mtObj, i.bin)
	if err != nil {
		i.reportCorrupt("resolving match type: %v", err)
		return false, sieveerr.BinCorrupt
	}
	ctx, err := sievematch.Begin(mt, cmp, keys)
	if err != nil {
		i.reportCorrupt("starting match: %v", err)
		return false, sieveerr.BinCorrupt
	}
	found := false
	for _, v := range values {
		ok, err := ctx.MatchValue(v)
		if err != nil {
			i.reportCorrupt("evaluating match: %v", err)
			return false, sieveerr.BinCorrupt
		}
		if ok {
			found = true
			break
		}
	}
	if _, err := ctx.End(); err != nil {
		i.reportCorrupt("finishing match: %v", err)
		return false, sieveerr.BinCorrupt
	}
	return found, sieveerr.OK
}

func (i *Interpreter) execTestHeader() sieveerr.Status {
	headerNames, err := i.r.ReadStringList()
	if err != nil {
		i.reportCorrupt("reading header-name list: %v", err)
		return sieveerr.BinCorrupt
	}
	keys, err := i.r.ReadStringList()
	if err != nil {
		i.reportCorrupt("reading key list: %v", err)
		return sieveerr.BinCorrupt
	}
	var values []string
	for _, name := range headerNames {
		values = append(values, i.envelope.HeaderValues(name)...)
	}
	found, status := i.runMatch(keys, values)
	if status != sieveerr.OK {
		return status
	}
	i.testResult = found
	return sieveerr.OK
}

func (i *Interpreter) execTestAddress() sieveerr.Status {
	partObj, err := i.r.ReadObject(sievecode.ClassAddressPart)
	if err != nil {
		i.reportCorrupt("reading address-part operand: %v", err)
		return sieveerr.BinCorrupt
	}
	headerNames, err := i.r.ReadStringList()
	if err != nil {
		i.reportCorrupt("reading header-name list: %v", err)
		return sieveerr.BinCorrupt
	}
	keys, err := i.r.ReadStringList()
	if err != nil {
		i.reportCorrupt("reading key list: %v", err)
		return sieveerr.BinCorrupt
	}
	if !partObj.Core {
		i.reportCorrupt("address-part operand must be a core code, got extension %d/%d", partObj.ExtIndex, partObj.SubCode)
		return sieveerr.BinCorrupt
	}
	var values []string
	for _, name := range headerNames {
		for _, v := range i.envelope.HeaderValues(name) {
			values = append(values, addressPart(partObj.Code, v))
		}
	}
	found, status := i.runMatch(keys, values)
	if status != sieveerr.OK {
		return status
	}
	i.testResult = found
	return sieveerr.OK
}

func addressPart(part int, value string) string {
	at := strings.LastIndexByte(value, '@')
	switch part {
	case AddressPartLocal:
		if at < 0 {
			return value
		}
		return value[:at]
	case AddressPartDomain:
		if at < 0 {
			return ""
		}
		return value[at+1:]
	default: // AddressPartAll
		return value
	}
}

func (i *Interpreter) execTestSize() sieveerr.Status {
	cmpByte, err := i.r.ReadByte()
	if err != nil {
		i.reportCorrupt("reading size comparison: %v", err)
		return sieveerr.BinCorrupt
	}
	threshold, err := i.r.ReadInteger()
	if err != nil {
		i.reportCorrupt("reading size threshold: %v", err)
		return sieveerr.BinCorrupt
	}
	var size int64
	if i.envelope != nil {
		size = i.envelope.Size
	}
	switch cmpByte {
	case SizeOver:
		i.testResult = size > int64(threshold)
	case SizeUnder:
		i.testResult = size < int64(threshold)
	default:
		i.reportCorrupt("unknown size comparison code %d", cmpByte)
		return sieveerr.BinCorrupt
	}
	return sieveerr.OK
}
