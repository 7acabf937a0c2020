// Completion: 100% - CLI entry point complete
package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/tliron/commonlog/simple"

	"github.com/xyproto/cinder/internal/x64"
)

// A JIT core that turns a subset of CPython-style stack bytecode into
// x86-64 code following the host's reference-counting rules

const versionString = "cinder 0.4.1"

func main() {
	cfg := LoadConfig()

	// NOTE: flags must come before the command: cinder -trace run f.toml
	var verbose = flag.Bool("v", cfg.Verbose, "verbose mode (log every pipeline stage)")
	var verboseLong = flag.Bool("verbose", cfg.Verbose, "verbose mode (log every pipeline stage)")
	var emitTrace = flag.Bool("emit", false, "print every emitted instruction to stderr")
	var steps = flag.Int("steps", cfg.MaxSteps, "simulator step limit for run")
	var trace = flag.Bool("trace", false, "print every simulated instruction to stderr")
	var versionShort = flag.Bool("V", false, "print version information and exit")
	flag.Parse()

	if *versionShort {
		fmt.Println(versionString)
		os.Exit(0)
	}

	cfg.Verbose = *verbose || *verboseLong
	cfg.MaxSteps = *steps
	cfg.Trace = *trace
	x64.VerboseMode = *emitTrace
	cfg.configureLogging()

	if err := RunCLI(flag.Args(), cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
