package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sievevm"
)

// ansi wraps s in color code unless plain is set, the same TTY-gated
// highlighting convention the teacher's builtins_term_*.go applies to its
// own terminal output.
func ansi(plain bool, code, s string) string {
	if plain {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// dumpBinary implements spec §6's Dump(binary, stream): a textual
// disassembly of the main block, address-by-address, mnemonic by
// mnemonic. Only the core opcode set and the three extensions this
// repository ships a decoder for (notify, vnd.dovecot.execute, duplicate) are
// understood; an unrecognized extension op ends the listing early rather
// than guessing at its operand shape.
func dumpBinary(bin *sievebin.Binary, out io.Writer, plain bool) error {
	main := bin.MainProgram()
	r := sievecode.NewReader(main.Data)

	fmt.Fprintf(out, "%s %s\n", ansi(plain, "2", "extensions:"), strings.Join(bin.Extensions(), ", "))

	hasDebug, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("reading debug flag: %w", err)
	}
	if hasDebug != 0 {
		debugID, err := r.ReadInteger()
		if err != nil {
			return fmt.Errorf("reading debug block id: %w", err)
		}
		fmt.Fprintf(out, "%s %d\n", ansi(plain, "2", "debug block:"), debugID)
	}

	n, err := r.ReadInteger()
	if err != nil {
		return fmt.Errorf("reading extensions-list count: %w", err)
	}
	var linked []string
	for k := uint64(0); k < n; k++ {
		idx, err := r.ReadInteger()
		if err != nil {
			return fmt.Errorf("reading extension index: %w", err)
		}
		name, _ := bin.ExtensionName(int(idx))
		linked = append(linked, name)
	}
	fmt.Fprintf(out, "%s %s\n\n", ansi(plain, "2", "linked:"), strings.Join(linked, ", "))

	for r.Remaining() > 0 {
		addr := r.Pos()
		op, err := r.ReadOp()
		if err != nil {
			return fmt.Errorf("@%d: decoding op: %w", addr, err)
		}
		line, err := disasmOne(r, op, bin)
		fmt.Fprintf(out, "%6d  %s\n", addr, ansi(plain, "33", line))
		if err != nil {
			fmt.Fprintf(out, "%6s  %s\n", "", ansi(plain, "31", fmt.Sprintf("(stopped: %v)", err)))
			return nil
		}
	}
	return nil
}

func disasmObject(r *sievecode.Reader, class sievecode.OperandClass) (string, error) {
	obj, err := r.ReadObject(class)
	if err != nil {
		return "", err
	}
	if obj.Core {
		return fmt.Sprintf("%s(core=%d)", class, obj.Code), nil
	}
	return fmt.Sprintf("%s(ext=%d,sub=%d)", class, obj.ExtIndex, obj.SubCode), nil
}

func disasmOne(r *sievecode.Reader, op sievecode.Op, bin *sievebin.Binary) (string, error) {
	if !op.Core {
		name, _ := bin.ExtensionName(op.ExtIndex)
		switch {
		case name == "notify" && op.SubCode == 0:
			uri, err := r.ReadString()
			if err != nil {
				return "", err
			}
			capability, err := r.ReadString()
			if err != nil {
				return "", err
			}
			keys, err := r.ReadStringList()
			if err != nil {
				return "", err
			}
			cmp, err := disasmObject(r, sievecode.ClassComparator)
			if err != nil {
				return "", err
			}
			mt, err := disasmObject(r, sievecode.ClassMatchType)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("notify-test-capability %q %q %v %s %s", uri, capability, keys, cmp, mt), nil
		case name == "notify" && op.SubCode == 1:
			method, err := r.ReadString()
			if err != nil {
				return "", err
			}
			msg, err := r.ReadString()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("notify-action %q %q", method, msg), nil
		case name == "vnd.dovecot.execute" && op.SubCode == 0:
			program, err := r.ReadString()
			if err != nil {
				return "", err
			}
			args, err := r.ReadStringList()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("execute %q %v", program, args), nil
		case name == "duplicate" && op.SubCode == 0:
			key, err := r.ReadString()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("duplicate-test %q", key), nil
		default:
			return "", fmt.Errorf("no decoder for extension %q sub-code %d", name, op.SubCode)
		}
	}

	switch op.Code {
	case sievevm.OpHalt:
		return "halt", nil
	case sievevm.OpJmp, sievevm.OpJmpTrue, sievevm.OpJmpFalse, sievevm.OpJmpBreak:
		anchor := r.Pos()
		off, err := r.ReadOffset()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s -> %d", sievevm.OpName(op.Code), int64(anchor)+int64(off)), nil
	case sievevm.OpTestHeader:
		headers, err := r.ReadStringList()
		if err != nil {
			return "", err
		}
		keys, err := r.ReadStringList()
		if err != nil {
			return "", err
		}
		cmp, err := disasmObject(r, sievecode.ClassComparator)
		if err != nil {
			return "", err
		}
		mt, err := disasmObject(r, sievecode.ClassMatchType)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("test-header %v %v %s %s", headers, keys, cmp, mt), nil
	case sievevm.OpTestAddress:
		part, err := disasmObject(r, sievecode.ClassAddressPart)
		if err != nil {
			return "", err
		}
		headers, err := r.ReadStringList()
		if err != nil {
			return "", err
		}
		keys, err := r.ReadStringList()
		if err != nil {
			return "", err
		}
		cmp, err := disasmObject(r, sievecode.ClassComparator)
		if err != nil {
			return "", err
		}
		mt, err := disasmObject(r, sievecode.ClassMatchType)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("test-address %s %v %v %s %s", part, headers, keys, cmp, mt), nil
	case sievevm.OpTestSize:
		code, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		limit, err := r.ReadInteger()
		if err != nil {
			return "", err
		}
		dir := "over"
		if code == sievevm.SizeUnder {
			dir = "under"
		}
		return fmt.Sprintf("test-size %s %d", dir, limit), nil
	case sievevm.OpTestNot:
		return "test-not", nil
	case sievevm.OpTestTrue:
		return "test-true", nil
	case sievevm.OpTestFalse:
		return "test-false", nil
	case sievevm.OpLoopStart:
		anchor := r.Pos()
		off, err := r.ReadOffset()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("loop-start end=%d", int64(anchor)+int64(off)), nil
	case sievevm.OpLoopNext:
		anchor := r.Pos()
		off, err := r.ReadOffset()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("loop-next begin=%d", int64(anchor)+int64(off)), nil
	case sievevm.OpLoopBreak:
		return "loop-break", nil
	case sievevm.OpFileInto:
		s, err := r.ReadString()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("fileinto %q", s), nil
	case sievevm.OpRedirect:
		s, err := r.ReadString()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("redirect %q", s), nil
	case sievevm.OpReject:
		s, err := r.ReadString()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("reject %q", s), nil
	case sievevm.OpKeep:
		return "keep", nil
	case sievevm.OpDiscard:
		return "discard", nil
	case sievevm.OpStop:
		return "stop", nil
	case sievevm.OpInclude:
		s, err := r.ReadString()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("include %q", s), nil
	default:
		return "", fmt.Errorf("unknown core opcode %d", op.Code)
	}
}
