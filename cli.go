// Completion: 100% - Command-line interface complete
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/xyproto/cinder/internal/bytecode"
	"github.com/xyproto/cinder/internal/codeobj"
	"github.com/xyproto/cinder/internal/engine"
	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/jit"
	"github.com/xyproto/cinder/internal/sim"
)

// cli.go - subcommands of cinder
//
// Every command takes code objects as .toml files (with a listing) or
// .cbor files (as written by "cinder pack").

// CommandContext holds the execution context for a CLI command
type CommandContext struct {
	Args   []string
	Config *Config
	Stdout io.Writer
	Stderr io.Writer
	log    commonlog.Logger
}

var commandNames = []string{"asm", "blocks", "check", "help", "pack", "roundtrip", "run", "symbols", "version"}

// errLeak is returned by run when the heap is not back to where it started.
var errLeak = errors.New("reference counts changed")

// RunCLI determines which command to run based on arguments
func RunCLI(args []string, cfg *Config, stdout, stderr io.Writer) error {
	ctx := &CommandContext{
		Args:   args,
		Config: cfg,
		Stdout: stdout,
		Stderr: stderr,
		log:    commonlog.GetLogger("cinder"),
	}

	if len(args) == 0 {
		return cmdHelp(ctx)
	}

	subcmd := args[0]
	switch subcmd {
	case "blocks":
		if len(args) != 2 {
			return fmt.Errorf("usage: cinder blocks <file>")
		}
		return cmdBlocks(ctx, args[1])

	case "asm":
		if len(args) != 2 {
			return fmt.Errorf("usage: cinder asm <file>")
		}
		return cmdAsm(ctx, args[1])

	case "run":
		if len(args) < 2 {
			return fmt.Errorf("usage: cinder run <file> [args...]")
		}
		return cmdRun(ctx, args[1], args[2:])

	case "roundtrip":
		if len(args) != 2 {
			return fmt.Errorf("usage: cinder roundtrip <file>")
		}
		return cmdRoundtrip(ctx, args[1])

	case "pack":
		if len(args) != 3 {
			return fmt.Errorf("usage: cinder pack <file> <out.cbor>")
		}
		return cmdPack(ctx, args[1], args[2])

	case "check":
		if len(args) < 2 {
			return fmt.Errorf("usage: cinder check <file>...")
		}
		return cmdCheck(ctx, args[1:])

	case "symbols":
		return cmdSymbols(ctx)

	case "help", "--help", "-h":
		return cmdHelp(ctx)

	case "version", "--version":
		return cmdVersion(ctx)

	default:
		return fmt.Errorf("unknown command: %s%s\n\nRun 'cinder help' for usage information", subcmd, engine.DidYouMean(subcmd, commandNames))
	}
}

// cmdBlocks prints the bytecode, its block boundaries and its CFG
func cmdBlocks(ctx *CommandContext, path string) error {
	c, err := codeobj.LoadFile(path)
	if err != nil {
		return err
	}
	out := ctx.Stdout

	fmt.Fprintf(out, "; %s: %d bytes of bytecode\n", c.Name, len(c.Bytecode))
	fmt.Fprint(out, bytecode.FormatListing(c.Bytecode))

	fmt.Fprintln(out, "\n; blocks")
	for i, iv := range bytecode.ComputeBlockBoundaries(c.Bytecode) {
		fmt.Fprintf(out, "bb%d  [%d, %d)\n", i, iv.Start, iv.End)
	}

	g, err := bytecode.DisassembleCFG(c.Bytecode)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	fmt.Fprintln(out, "\n; cfg")
	fmt.Fprint(out, g.String())
	return nil
}

// cmdAsm prints the generated code before linking
func cmdAsm(ctx *CommandContext, path string) error {
	c, err := codeobj.LoadFile(path)
	if err != nil {
		return err
	}
	tr, err := jit.NewCompiler(nil).Translate(c)
	if err != nil {
		return err
	}
	a := tr.Artifact
	listing, err := a.Disassemble()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "; %s: %d bytes, %d relocations, %d variables, %d block slots\n",
		a.Name, len(a.Code), len(a.Relocations), a.FrameSlots, a.BlockStackDepth)
	fmt.Fprint(ctx.Stdout, listing)
	return nil
}

// cmdRun compiles a code object and calls it on the simulated host. The
// arguments default to the ones in the file.
func cmdRun(ctx *CommandContext, path string, rawArgs []string) error {
	c, err := codeobj.LoadFile(path)
	if err != nil {
		return err
	}
	values := c.Args
	if len(rawArgs) > 0 {
		values = make([]codeobj.Value, len(rawArgs))
		for i, s := range rawArgs {
			values[i] = codeobj.ParseValue(s)
		}
	}
	if len(values) != c.ArgCount {
		return fmt.Errorf("%s takes %d arguments, %d given", c.Name, c.ArgCount, len(values))
	}

	h := sim.NewHost()
	h.MaxSteps = ctx.Config.MaxSteps
	tr, err := jit.NewCompiler(hostrt.NewResolver(h.Source(), nil)).Translate(c)
	if err != nil {
		return err
	}
	binding := h.Bind(c)
	p, err := h.Load(tr.Artifact, binding.Bindings)
	if err != nil {
		return err
	}
	if ctx.Config.Trace {
		p.Trace = ctx.Stderr
	}

	before := h.Snapshot()
	args := make([]uint64, len(values))
	shown := make([]string, len(values))
	for i, v := range values {
		args[i] = h.New(v)
		shown[i] = v.String()
	}

	rax, err := p.Call(args...)
	if err != nil {
		return fmt.Errorf("run %s: %w", c.Name, err)
	}
	fmt.Fprintf(ctx.Stdout, "%s(%s) = %s\n", c.Name, strings.Join(shown, ", "), h.Describe(rax))
	if rax == 0 {
		fmt.Fprintf(ctx.Stdout, "raised %s\n", h.Exception())
	} else if err := h.Decref(rax); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "%s steps, %s of code\n", humanize.Comma(int64(p.Steps)), humanize.Bytes(uint64(len(p.Code))))

	for _, a := range args {
		if err := h.Decref(a); err != nil {
			return err
		}
	}
	changed := 0
	after := h.Snapshot()
	for addr, count := range before {
		if after[addr] != count {
			fmt.Fprintf(ctx.Stdout, "refcount of %s: %d -> %d\n", h.Describe(addr), count, after[addr])
			changed++
		}
	}
	for addr := range after {
		if _, ok := before[addr]; !ok {
			fmt.Fprintf(ctx.Stdout, "leaked %s\n", h.Describe(addr))
			changed++
		}
	}
	if err := binding.Release(); err != nil {
		return err
	}
	if changed > 0 || h.Live() > 0 {
		return fmt.Errorf("%s: %w (%d changes, %d objects live)", c.Name, errLeak, changed, h.Live())
	}
	ctx.log.Infof("%s: refcounts balanced", c.Name)
	return nil
}

// cmdRoundtrip checks that re-encoding the CFG gives the same shape back
func cmdRoundtrip(ctx *CommandContext, path string) error {
	c, err := codeobj.LoadFile(path)
	if err != nil {
		return err
	}
	g, err := bytecode.DisassembleCFG(c.Bytecode)
	if err != nil {
		return err
	}
	code, err := bytecode.Assemble(g)
	if err != nil {
		return err
	}
	again, err := bytecode.DisassembleCFG(code)
	if err != nil {
		return fmt.Errorf("re-encoded bytecode: %w", err)
	}
	if again.Len() != g.Len() {
		return fmt.Errorf("%d blocks became %d", g.Len(), again.Len())
	}
	for i, b := range g.Blocks {
		if got := again.Blocks[i].TerminatorKind(); got != b.TerminatorKind() {
			return fmt.Errorf("%s ends in %s, was %s", b.Label, got, b.TerminatorKind())
		}
	}
	fmt.Fprintf(ctx.Stdout, "ok: %d blocks, %d -> %d bytes\n", g.Len(), len(c.Bytecode), len(code))
	return nil
}

// cmdPack writes a code object as CBOR
func cmdPack(ctx *CommandContext, path, outPath string) error {
	c, err := codeobj.LoadFile(path)
	if err != nil {
		return err
	}
	data, err := codeobj.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "wrote %s (%s)\n", outPath, humanize.Bytes(uint64(len(data))))
	return nil
}

type checkResult struct {
	path  string
	size  int
	cause error
}

// cmdCheck translates every file and reports which ones would fall back
func cmdCheck(ctx *CommandContext, paths []string) error {
	compiler := jit.NewCompiler(nil)
	results := make([]checkResult, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			c, err := codeobj.LoadFile(path)
			if err != nil {
				return err
			}
			results[i].path = path
			tr, err := compiler.Translate(c)
			switch {
			case errors.Is(err, jit.ErrUntranslatable):
				results[i].cause = err
			case err != nil:
				return fmt.Errorf("%s: %w", path, err)
			default:
				results[i].size = len(tr.Artifact.Code)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fallbacks := 0
	for _, r := range results {
		if r.cause != nil {
			fmt.Fprintf(ctx.Stdout, "fallback  %s: %v\n", r.path, r.cause)
			fallbacks++
			continue
		}
		fmt.Fprintf(ctx.Stdout, "ok        %s (%s)\n", r.path, humanize.Bytes(uint64(r.size)))
	}
	fmt.Fprintf(ctx.Stdout, "%d of %d translated\n", len(results)-fallbacks, len(results))
	return nil
}

// cmdSymbols resolves the host symbols in this process
func cmdSymbols(ctx *CommandContext) error {
	src, err := hostrt.ProcessSource()
	if err != nil {
		return err
	}
	r := hostrt.NewResolver(src, ctx.Config.overrides())
	table, err := r.Table()
	if err != nil {
		return err
	}
	for _, s := range hostrt.Symbols() {
		fmt.Fprintf(ctx.Stdout, "%-12s %-24s %#x\n", s, table.Name(s), table.Address(s))
	}
	return nil
}

func cmdVersion(ctx *CommandContext) error {
	host := engine.Host()
	native := "no"
	if host.CanRunNative() {
		native = "yes"
	}
	fmt.Fprintln(ctx.Stdout, versionString)
	fmt.Fprintf(ctx.Stdout, "platform %s, native code: %s\n", host, native)
	return nil
}

func cmdHelp(ctx *CommandContext) error {
	fmt.Fprint(ctx.Stdout, `cinder - a bytecode to x86-64 JIT core

USAGE:
    cinder [flags] <command> [arguments]

COMMANDS:
    blocks <file>            Show the bytecode, its basic blocks and its CFG
    asm <file>               Show the generated x86-64 code and its relocations
    run <file> [args...]     Compile and call on the simulated host
    roundtrip <file>         Check that the CFG re-encodes to the same shape
    pack <file> <out.cbor>   Write the code object as CBOR
    check <file>...          Report which functions can be translated
    symbols                  Resolve the host symbols in this process
    help                     Show this help message
    version                  Show version information

ARGUMENTS:
    None, True, False, 42, object, fn:identity, anything else is a str

FLAGS (before the command):
    -v, --verbose            Log every pipeline stage
    -emit                    Print every emitted instruction to stderr
    -steps <n>               Simulator step limit (default from CINDER_SIM_MAX_STEPS)
    -trace                   Print every simulated instruction to stderr
    -V                       Print the version and exit

ENVIRONMENT:
    CINDER_VERBOSE           Same as -v
    CINDER_LOG_VERBOSITY     Log verbosity, 0 (notices) to 2 (debug)
    CINDER_LOG_FILE          Log to this file instead of stderr
    CINDER_SIM_MAX_STEPS     Simulator step limit
    CINDER_CALL_SYMBOL       Host name of the call trampoline, for symbols

EXAMPLES:
    cinder run identity.toml 100
    cinder -trace run greet.toml object
    cinder pack greet.toml greet.cbor && cinder asm greet.cbor
`)
	return nil
}
