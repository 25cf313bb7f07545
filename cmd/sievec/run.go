package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sieveconfig"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sieveext"
	"github.com/funvibe/sievecore/internal/sieveresult"
	"github.com/funvibe/sievecore/internal/sievevm"
)

// knownExtensions answers sievebin.ExtensionResolver for the extension set
// this reference driver wires (regex, notify, vnd.dovecot.execute,
// duplicate); any
// binary linking something else fails to load, the same fail-closed
// posture sievematch.Registry applies to unresolved operands.
type knownExtensions struct{}

func (knownExtensions) Known(name string) bool {
	switch name {
	case "regex", "notify", "vnd.dovecot.execute", "duplicate":
		return true
	default:
		return false
	}
}

func runLoad(args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sievec load <script.svbin>")
	}
	bin, err := sievebin.Load(fs.Arg(0), knownExtensions{})
	if err != nil {
		return err
	}
	fmt.Printf("version %d.%d, %d block(s), extensions: %v\n", bin.VersionMajor, bin.VersionMinor, len(bin.Blocks()), bin.Extensions())
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	plainFlag := fs.Bool("plain", false, "disable ANSI highlighting even on a TTY")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sievec dump <script.svbin>")
	}
	bin, err := sievebin.Load(fs.Arg(0), knownExtensions{})
	if err != nil {
		return err
	}
	plain := *plainFlag || !isatty.IsTerminal(os.Stdout.Fd())
	return dumpBinary(bin, os.Stdout, plain)
}

// envelopeFlags is the flag set shared by execute and test, building a
// sievevm.Envelope from repeatable -header flags plus -size/-mailbox.
type envelopeFlags struct {
	headers    headerFlags
	size       int64
	mailbox    string
	configPath string
}

func bindEnvelopeFlags(fs *flag.FlagSet) *envelopeFlags {
	ef := &envelopeFlags{}
	fs.Var(&ef.headers, "header", `header line "Name: value", repeatable`)
	fs.Int64Var(&ef.size, "size", 0, "message size in bytes")
	fs.StringVar(&ef.mailbox, "mailbox", "INBOX", "default mailbox")
	fs.StringVar(&ef.configPath, "config", "", "sieveconfig YAML file")
	return ef
}

func (ef *envelopeFlags) envelope() *sievevm.Envelope {
	return &sievevm.Envelope{Headers: parseHeaders(ef.headers), Size: ef.size}
}

// buildRegistry wires the full reference extension set (regex, notify, the
// external-program runner, duplicate suppression) against a loaded config,
// the same set knownExtensions declares loadable.
func buildRegistry(cfg sieveconfig.Config, tracker sieveext.DuplicateTracker) *sieveext.Registry {
	reg := sieveext.NewRegistry()
	reg.WireRegex()
	reg.WireNotify(nil)
	client := sieveext.NewProgramClient(sieveext.ProgramClientConfig{
		ConnectTimeout: cfg.Program.ConnectTimeout(),
		IdleTimeout:    cfg.Program.IdleTimeout(),
	})
	reg.WireProgramClient(client)
	reg.WireDuplicate(tracker)
	return reg
}

func loadBinaryAndRun(path string, ef *envelopeFlags) (*sieveresult.Result, sieveerr.Status, error) {
	cfg, err := loadConfig(ef.configPath)
	if err != nil {
		return nil, 0, err
	}
	bin, err := sievebin.Load(path, knownExtensions{})
	if err != nil {
		return nil, 0, err
	}
	store, err := openDupstore(cfg)
	if err != nil {
		return nil, 0, err
	}
	defer store.Close()
	reg := buildRegistry(cfg, store)
	result := sieveresult.New()
	interp, err := sievevm.NewInterpreter(bin, sievebin.MainBlock, nil, sievevm.Options{
		Registry:   reg.Match,
		Extensions: reg.Extensions,
		Result:     result,
		Env:        &sieveresult.Environment{DefaultBox: ef.mailbox},
		Envelope:   ef.envelope(),
		ErrorSink:  consoleErrorSink{},
	})
	if err != nil {
		return nil, 0, err
	}
	return result, interp.Run(), nil
}

func runExecute(args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	ef := bindEnvelopeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sievec execute <script.svbin> [envelope flags]")
	}
	result, status, err := loadBinaryAndRun(fs.Arg(0), ef)
	if err != nil {
		return err
	}
	fmt.Printf("run status: %s\n", status)
	if status != sieveerr.OK {
		return nil
	}

	env := &sieveresult.Environment{
		Store:      consoleStore{},
		Sender:     consoleSender{},
		Notifier:   consoleNotifier{},
		ErrorSink:  consoleErrorSink{},
		Message:    &sieveresult.Message{ID: "cli-message", OriginMailbox: ef.mailbox},
		DefaultBox: ef.mailbox,
	}
	commitStatus := result.Commit(env)
	if commitStatus == sieveerr.OK {
		commitStatus = result.ImplicitKeep(env, sieveresult.KeepAction{})
	}
	fmt.Printf("commit status: %s\n", commitStatus)
	return nil
}

func runTest(args []string) error {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	ef := bindEnvelopeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sievec test <script.svbin> [envelope flags]")
	}
	result, status, err := loadBinaryAndRun(fs.Arg(0), ef)
	if err != nil {
		return err
	}
	fmt.Printf("run status: %s\n", status)
	for _, act := range result.Actions() {
		fmt.Printf("  %s %v (line %d)\n", act.Def.Name(), act.Ctx, act.Line)
	}
	if !result.KeepSuppressed() && !result.HasExclusiveOverride() {
		fmt.Println("  (implicit keep would apply)")
	}
	return nil
}

type consoleErrorSink struct{}

func (consoleErrorSink) Report(sev sieveerr.Severity, loc sieveerr.Location, msg string) {
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", sev, loc, msg)
}

type consoleStore struct{}

func (consoleStore) OpenMailbox(name string) (sieveresult.MailboxHandle, error) { return name, nil }
func (consoleStore) CreateMailbox(name string) error                           { return nil }
func (consoleStore) Subscribe(name string) error                               { return nil }
func (consoleStore) BeginTransaction(h sieveresult.MailboxHandle) (sieveresult.Transaction, error) {
	return h, nil
}
func (consoleStore) SaveMail(tx sieveresult.Transaction, msg *sieveresult.Message, destFlags, destKeywords []string) error {
	fmt.Printf("  store -> %v (flags=%v keywords=%v)\n", tx, destFlags, destKeywords)
	return nil
}
func (consoleStore) Commit(tx sieveresult.Transaction) error   { return nil }
func (consoleStore) Rollback(tx sieveresult.Transaction) error { return nil }
func (consoleStore) LastError() (string, string)               { return "", "" }

type consoleSender struct{}

func (consoleSender) Redirect(address string) error {
	fmt.Printf("  redirect -> %s\n", address)
	return nil
}
func (consoleSender) Reject(reason string) error {
	fmt.Printf("  reject -> %s\n", reason)
	return nil
}

type consoleNotifier struct{}

func (consoleNotifier) Notify(method, message string) error {
	fmt.Printf("  notify %s: %s\n", method, message)
	return nil
}
