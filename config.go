// Completion: 100% - Configuration complete
package main

import (
	"github.com/tliron/commonlog"
	"github.com/xyproto/env/v2"

	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/sim"
)

// Config holds the settings read from the environment. Flags given on the
// command line override them.
type Config struct {
	Verbose      bool   // CINDER_VERBOSE
	LogVerbosity int    // CINDER_LOG_VERBOSITY, 0 is notices and above
	LogFile      string // CINDER_LOG_FILE, stderr when empty
	MaxSteps     int    // CINDER_SIM_MAX_STEPS
	CallSymbol   string // CINDER_CALL_SYMBOL, host name of the call trampoline
	Trace        bool
}

// LoadConfig reads the CINDER_* environment variables. The env cache is
// reloaded first, so a second call sees variables set since the first.
func LoadConfig() *Config {
	env.Load()
	return &Config{
		Verbose:      env.Bool("CINDER_VERBOSE"),
		LogVerbosity: env.Int("CINDER_LOG_VERBOSITY", 0),
		LogFile:      env.Str("CINDER_LOG_FILE"),
		MaxSteps:     env.Int("CINDER_SIM_MAX_STEPS", sim.DefaultMaxSteps),
		CallSymbol:   env.Str("CINDER_CALL_SYMBOL"),
	}
}

// verbosity is the commonlog verbosity; -v raises it to info.
func (c *Config) verbosity() int {
	if c.Verbose && c.LogVerbosity < 1 {
		return 1
	}
	return c.LogVerbosity
}

func (c *Config) configureLogging() {
	commonlog.Initialize(c.verbosity(), c.LogFile)
}

// overrides maps symbols to the host names configured for them.
func (c *Config) overrides() map[hostrt.Symbol]string {
	if c.CallSymbol == "" {
		return nil
	}
	return map[hostrt.Symbol]string{hostrt.Call: c.CallSymbol}
}
