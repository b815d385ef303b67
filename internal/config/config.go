// Package config loads the small set of environment-driven tunables the VM
// and GC accept. Runtime knobs live in ECLOX_* env vars rather than flags
// so they apply uniformly to every subcommand, including the REPL.
package config

import "github.com/caarlos0/env/v6"

// Config holds the environment-driven tunables for a single VM instance.
// None of these are required; every field defaults to the machine
// package's compiled-in constants.
type Config struct {
	// GCStress forces a full collection before every single allocation,
	// used for shaking out GC correctness bugs.
	GCStress bool `env:"ECLOX_GC_STRESS" envDefault:"false"`

	// GCHeapGrowFactor multiplies bytesAllocated to compute the next
	// collection threshold.
	GCHeapGrowFactor int `env:"ECLOX_GC_GROW_FACTOR" envDefault:"2"`

	// GCInitialThreshold is the byte count that must be allocated before
	// the first collection can run.
	GCInitialThreshold int64 `env:"ECLOX_GC_INITIAL_THRESHOLD" envDefault:"1048576"`

	// Dialect selects the keyword table the scanner uses: "lox" or
	// "natural". One dialect applies for the whole process.
	Dialect string `env:"ECLOX_DIALECT" envDefault:"lox"`
}

// Load reads Config from the process environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
