package sieveext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sieveresult"
	"github.com/funvibe/sievecore/internal/sievevm"
)

// ProgramClientConfig carries the two independent deadlines the original
// program-client event loop tracks separately (original_source/src/
// lib-sieve/util/program-client.c: client_connect_timeout_msecs governs
// how long establishing the subprocess connection may take,
// input_idle_timeout_secs governs how long the loop will wait between
// chunks of output once connected). Zero disables the corresponding
// deadline.
type ProgramClientConfig struct {
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

// ProgramClient runs an external filter/notification program and collects
// its stdout, standing in for the original's libexec-script connection
// (program_client_connect / program_client_run) over a plain os/exec
// subprocess instead of the original's dedicated script-service protocol.
type ProgramClient struct {
	cfg ProgramClientConfig
}

// NewProgramClient returns a client enforcing cfg's timeouts.
func NewProgramClient(cfg ProgramClientConfig) *ProgramClient {
	return &ProgramClient{cfg: cfg}
}

// Run starts name with args, writes stdin to it, and returns everything it
// writes to stdout. ctx bounds the whole call; ConnectTimeout additionally
// bounds how long Start may take to hand back a running process,
// IdleTimeout how long the read loop may go between chunks of output once
// running — mirroring the original's two-phase timeout split rather than
// one deadline for the entire invocation.
func (p *ProgramClient) Run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("sieveext: program %q: %w", name, err)
	}

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()

	select {
	case err := <-started:
		if err != nil {
			return nil, fmt.Errorf("sieveext: program %q: connect: %w", name, err)
		}
	case <-p.after(p.cfg.ConnectTimeout):
		return nil, fmt.Errorf("sieveext: program %q: connect timeout exceeded", name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	type chunk struct {
		data []byte
		err  error
	}
	out := make(chan chunk)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				out <- chunk{data: append([]byte(nil), buf[:n]...)}
			}
			if err != nil {
				out <- chunk{err: err}
				return
			}
		}
	}()

	var result bytes.Buffer
	var idleTimer *time.Timer
	if p.cfg.IdleTimeout > 0 {
		idleTimer = time.NewTimer(p.cfg.IdleTimeout)
		defer idleTimer.Stop()
	}
	for {
		var idleC <-chan time.Time
		if idleTimer != nil {
			idleC = idleTimer.C
		}
		select {
		case c := <-out:
			if idleTimer != nil {
				if !idleTimer.Stop() {
					<-idleTimer.C
				}
				idleTimer.Reset(p.cfg.IdleTimeout)
			}
			if c.err != nil {
				if c.err != io.EOF {
					_ = cmd.Process.Kill()
					return nil, fmt.Errorf("sieveext: program %q: %w", name, c.err)
				}
				if err := cmd.Wait(); err != nil {
					return nil, fmt.Errorf("sieveext: program %q: %w", name, err)
				}
				return result.Bytes(), nil
			}
			result.Write(c.data)
		case <-idleC:
			_ = cmd.Process.Kill()
			return nil, fmt.Errorf("sieveext: program %q: idle timeout exceeded", name)
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			return nil, ctx.Err()
		}
	}
}

// after returns a channel that fires after d, or a nil (never-firing)
// channel when d is zero, matching the "zero disables this deadline"
// convention ProgramClientConfig documents.
func (p *ProgramClient) after(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	return time.After(d)
}

// RunProgram implements sieveresult.ProgramRunner, running with a
// background context since ExecuteAction.Execute has no context of its
// own to thread through.
func (p *ProgramClient) RunProgram(name string, args []string, stdin []byte) ([]byte, error) {
	return p.Run(context.Background(), name, args, stdin)
}

// ProgramExtension is the VM-level half of the execute action: it decodes
// the "program, args" operands off the code stream and records an execute
// action, the same way sievevm/actions.go's core action opcodes do.
type ProgramExtension struct {
	Client *ProgramClient
}

func (ProgramExtension) Name() string { return "vnd.dovecot.execute" }

func (ProgramExtension) InterpreterLoad(*sievevm.Interpreter, *sievecode.Reader) error { return nil }

func (e ProgramExtension) Execute(interp *sievevm.Interpreter, subCode int, r *sievecode.Reader) sieveerr.Status {
	if subCode != 0 {
		interp.ReportCorrupt("vnd.dovecot.execute: unknown sub-code %d", subCode)
		return sieveerr.BinCorrupt
	}
	program, err := r.ReadString()
	if err != nil {
		interp.ReportCorrupt("vnd.dovecot.execute: reading program operand: %v", err)
		return sieveerr.BinCorrupt
	}
	args, err := r.ReadStringList()
	if err != nil {
		interp.ReportCorrupt("vnd.dovecot.execute: reading args operand: %v", err)
		return sieveerr.BinCorrupt
	}
	if interp.Result() == nil {
		return sieveerr.OK
	}
	interp.Result().Add(sieveresult.ExecuteAction{}, sieveresult.Context{"program": program, "args": args}, interp.Location().Line, -1)
	return sieveerr.OK
}
