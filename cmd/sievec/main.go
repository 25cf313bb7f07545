// Command sievec is the thin reference driver SPEC_FULL.md's external
// interfaces section calls for: a corpus-faithful repository always ships
// a command that drives its own library. It exercises Compile (from a
// sieveasm YAML fixture, bypassing the parser this repository doesn't
// define), Load, Execute, Test and Dump end to end, dispatched in the
// style of the teacher's cmd/funxy/main.go (switch os.Args[1], one
// runXxx per subcommand, flag.NewFlagSet per subcommand).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/funvibe/sievecore/internal/dupstore"
	"github.com/funvibe/sievecore/internal/sieveasm"
	"github.com/funvibe/sievecore/internal/sieveconfig"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "compile":
		err = runCompile(os.Args[2:])
	case "load":
		err = runLoad(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "execute":
		err = runExecute(os.Args[2:])
	case "test":
		err = runTest(os.Args[2:])
	case "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "sievec: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sievec: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sievec <subcommand> [args]

subcommands:
  compile -o <out.svbin> <script.yaml>   assemble a YAML fixture into a binary
  load <script.svbin>                    open and verify a binary, print its manifest
  dump <script.svbin>                    disassemble a binary's main block
  execute <script.svbin> [envelope flags]   run and commit against a console mail store
  test <script.svbin> [envelope flags]      run and print the resulting action plan without committing

envelope flags (execute/test):
  -header "Name: value"   repeatable
  -size N                 message size in bytes
  -mailbox NAME           default mailbox (defaults to INBOX)
  -config path.yaml       sieveconfig file (defaults built in if omitted)`)
}

func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", "", "output binary path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *out == "" {
		return fmt.Errorf("usage: sievec compile -o <out.svbin> <script.yaml>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	bin, err := sieveasm.AssembleYAML(data)
	if err != nil {
		return err
	}
	return bin.Save(*out)
}

func parseHeaders(values []string) map[string][]string {
	headers := map[string][]string{}
	for _, v := range values {
		name, val, ok := strings.Cut(v, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		val = strings.TrimSpace(val)
		headers[name] = append(headers[name], val)
	}
	return headers
}

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ",") }
func (h *headerFlags) Set(v string) error {
	*h = append(*h, v)
	return nil
}

func loadConfig(path string) (sieveconfig.Config, error) {
	if path == "" {
		return sieveconfig.Default(), nil
	}
	return sieveconfig.Load(path)
}

func openDupstore(cfg sieveconfig.Config) (*dupstore.Store, error) {
	path := cfg.Dupstore.Path
	if path == "" {
		path = ":memory:"
	}
	return dupstore.Open(path)
}
