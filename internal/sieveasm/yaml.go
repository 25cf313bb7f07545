package sieveasm

import (
	"fmt"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sievevm"
	"gopkg.in/yaml.v3"
)

// Sub-codes within the notify extension's private opcode space, mirrored
// from internal/sieveext/notify.go's unexported constants of the same
// values (this package has no import relationship with sieveext, so the
// wire-format convention is simply repeated here rather than shared).
const (
	notifySubTestCapability = 0
	notifySubAction         = 1
)

// notifyExtName and programExtName mirror the canonical extension names
// internal/sieveext registers its NotifyExtension/ProgramExtension under.
const (
	notifyExtName    = "notify"
	programExtName   = "vnd.dovecot.execute"
	duplicateExtName = "duplicate"
)

// duplicateSubTest mirrors internal/sieveext/duplicate.go's sole sub-code.
const duplicateSubTest = 0

// yamlObj is an object-operand spec: either a core code or an (ext, sub)
// pair, matching sievecode.Object's own Core/Code vs ExtIndex/SubCode
// split.
type yamlObj struct {
	Core *int   `yaml:"core,omitempty"`
	Ext  string `yaml:"ext,omitempty"`
	Sub  int    `yaml:"sub,omitempty"`
}

// yamlOp is one entry of the assembly file's "program" list: a label
// definition (Label non-empty) or an instruction (Op non-empty), with
// every operand field any instruction might need. This is a convenience
// surface over Assembler for cmd/sievec's "compile" subcommand and for
// tests that would rather write a short YAML fixture than call the
// Assembler API directly — it is not a new scripting language and
// supports only what the core opcode set already defines (spec §1: "No
// specific script-language syntax is defined here").
type yamlOp struct {
	Label string `yaml:"label,omitempty"`
	Line  int    `yaml:"line,omitempty"`
	Op    string `yaml:"op,omitempty"`

	Target string `yaml:"target,omitempty"`
	Begin  string `yaml:"begin,omitempty"`
	End    string `yaml:"end,omitempty"`

	Comparator  *yamlObj `yaml:"comparator,omitempty"`
	MatchType   *yamlObj `yaml:"matchtype,omitempty"`
	AddressPart *yamlObj `yaml:"part,omitempty"`

	Headers []string `yaml:"headers,omitempty"`
	Keys    []string `yaml:"keys,omitempty"`

	Comparison string `yaml:"comparison,omitempty"`
	Limit      uint64  `yaml:"limit,omitempty"`

	Mailbox string `yaml:"mailbox,omitempty"`
	Address string `yaml:"address,omitempty"`
	Reason  string `yaml:"reason,omitempty"`
	Name    string `yaml:"name,omitempty"`

	URI        string `yaml:"uri,omitempty"`
	Capability string `yaml:"capability,omitempty"`
	Method     string `yaml:"method,omitempty"`
	Message    string `yaml:"message,omitempty"`

	Program string   `yaml:"program,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	Key string `yaml:"key,omitempty"`
}

// yamlDoc is the top-level assembly file: a YAML front-matter-style
// document (spec supplement, DESIGN.md: "gopkg.in/yaml.v3... the
// sieveasm textual assembly format's metadata header") naming the
// extensions this program requires, whether to emit debug line info, and
// the flat instruction list itself.
type yamlDoc struct {
	Require []string `yaml:"require,omitempty"`
	Debug   bool     `yaml:"debug,omitempty"`
	Program []yamlOp `yaml:"program"`
}

// AssembleYAML parses an assembly file and links it into a binary, the
// generator-free compilation path cmd/sievec's "compile" subcommand exercises
// (spec §6: "a Generator... drives the core's assembler directly").
func AssembleYAML(data []byte) (*sievebin.Binary, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sieveasm: parsing assembly yaml: %w", err)
	}
	a := NewAssembler()
	for _, name := range doc.Require {
		a.LinkExtension(name)
	}
	for idx, op := range doc.Program {
		if op.Label != "" {
			if err := a.Label(op.Label); err != nil {
				return nil, err
			}
			continue
		}
		if doc.Debug && op.Line > 0 {
			a.SetLine(op.Line)
		}
		if err := a.emitYAMLOp(op); err != nil {
			return nil, fmt.Errorf("sieveasm: program[%d] (op %q): %w", idx, op.Op, err)
		}
	}
	return a.Link()
}

func (a *Assembler) emitObj(class sievecode.OperandClass, spec *yamlObj) error {
	if spec == nil {
		return fmt.Errorf("missing object operand for class %s", class)
	}
	if spec.Core != nil {
		a.ObjectCore(class, *spec.Core)
		return nil
	}
	if spec.Ext == "" {
		return fmt.Errorf("object operand for class %s needs either core or ext", class)
	}
	a.ObjectExt(class, spec.Ext, spec.Sub)
	return nil
}

func sizeComparisonCode(s string) (byte, error) {
	switch s {
	case "over":
		return sievevm.SizeOver, nil
	case "under":
		return sievevm.SizeUnder, nil
	default:
		return 0, fmt.Errorf("unknown size comparison %q (want \"over\" or \"under\")", s)
	}
}

// emitYAMLOp translates one instruction entry into Assembler calls,
// matching each core/extension opcode's exact operand order as read by
// sievevm's execXxx handlers (internal/sievevm/{tests,actions}.go,
// internal/sieveext/{notify,programclient}.go).
func (a *Assembler) emitYAMLOp(op yamlOp) error {
	switch op.Op {
	case "halt":
		a.Op(sievevm.OpHalt)
	case "jmp":
		a.Op(sievevm.OpJmp)
		a.Jump(op.Target)
	case "jmp-true":
		a.Op(sievevm.OpJmpTrue)
		a.Jump(op.Target)
	case "jmp-false":
		a.Op(sievevm.OpJmpFalse)
		a.Jump(op.Target)
	case "jmp-break":
		a.Op(sievevm.OpJmpBreak)
		a.Jump(op.Target)
	case "loop-start":
		a.Op(sievevm.OpLoopStart)
		a.Jump(op.End)
	case "loop-next":
		a.Op(sievevm.OpLoopNext)
		a.Jump(op.Begin)
	case "loop-break":
		a.Op(sievevm.OpLoopBreak)
	case "test-not":
		a.Op(sievevm.OpTestNot)
	case "test-true":
		a.Op(sievevm.OpTestTrue)
	case "test-false":
		a.Op(sievevm.OpTestFalse)
	case "test-header":
		a.Op(sievevm.OpTestHeader)
		a.StrList(op.Headers)
		a.StrList(op.Keys)
		if err := a.emitObj(sievecode.ClassComparator, op.Comparator); err != nil {
			return err
		}
		if err := a.emitObj(sievecode.ClassMatchType, op.MatchType); err != nil {
			return err
		}
	case "test-address":
		a.Op(sievevm.OpTestAddress)
		if err := a.emitObj(sievecode.ClassAddressPart, op.AddressPart); err != nil {
			return err
		}
		a.StrList(op.Headers)
		a.StrList(op.Keys)
		if err := a.emitObj(sievecode.ClassComparator, op.Comparator); err != nil {
			return err
		}
		if err := a.emitObj(sievecode.ClassMatchType, op.MatchType); err != nil {
			return err
		}
	case "test-size":
		a.Op(sievevm.OpTestSize)
		code, err := sizeComparisonCode(op.Comparison)
		if err != nil {
			return err
		}
		a.Byte(code)
		a.Int(op.Limit)
	case "fileinto":
		a.Op(sievevm.OpFileInto)
		a.Str(op.Mailbox)
	case "redirect":
		a.Op(sievevm.OpRedirect)
		a.Str(op.Address)
	case "reject":
		a.Op(sievevm.OpReject)
		a.Str(op.Reason)
	case "keep":
		a.Op(sievevm.OpKeep)
	case "discard":
		a.Op(sievevm.OpDiscard)
	case "stop":
		a.Op(sievevm.OpStop)
	case "include":
		a.Op(sievevm.OpInclude)
		a.Str(op.Name)
	case "notify-test-capability":
		a.ExtOp(notifyExtName, notifySubTestCapability)
		a.Str(op.URI)
		a.Str(op.Capability)
		a.StrList(op.Keys)
		if err := a.emitObj(sievecode.ClassComparator, op.Comparator); err != nil {
			return err
		}
		if err := a.emitObj(sievecode.ClassMatchType, op.MatchType); err != nil {
			return err
		}
	case "notify-action":
		a.ExtOp(notifyExtName, notifySubAction)
		a.Str(op.Method)
		a.Str(op.Message)
	case "execute":
		a.ExtOp(programExtName, 0)
		a.Str(op.Program)
		a.StrList(op.Args)
	case "duplicate-test":
		a.ExtOp(duplicateExtName, duplicateSubTest)
		a.Str(op.Key)
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}
