// Package config layers kumirc's compiler configuration: built-in
// defaults, an optional .env file, then process environment
// overrides. Grounded on the retrieved pack's termfx-morfx CLI, the
// one example module that reads its own .env file with
// github.com/joho/godotenv before its command tree runs; the teacher
// itself has no config-file layer of its own.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every KUMIRC_* setting the driver and cache layer read.
type Config struct {
	// ModulePath is the search path for `использовать`-named modules'
	// native descriptors, colon-separated.
	ModulePath []string

	// Verbosity controls how much of the diagnostic tree cmd/kumirc
	// renders: 0 prints only the top-level message, higher values
	// descend further into Diagnostic.Children.
	Verbosity int

	// CacheDSN is the store.Open DSN for the compiled-module cache, or
	// "" to disable caching entirely.
	CacheDSN string

	// TargetTriple is handed to the external codegen backend this
	// repository does not implement (§1); carried through so the
	// driver can report what it would have targeted.
	TargetTriple string
}

// Default returns the configuration kumirc runs with if no .env file
// and no KUMIRC_* environment variables are present.
func Default() Config {
	return Config{
		Verbosity:    1,
		TargetTriple: "native",
	}
}

// Load starts from Default(), applies envFile's KUMIRC_* assignments
// (if envFile is non-empty and the file exists; a missing optional
// file is not an error, the same tolerance godotenv.Load applies to
// its own default ".env"), and finally applies process-environment
// overrides, so `KUMIRC_VERBOSITY=2 kumirc compile` always wins over
// whatever the .env file says.
func Load(envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return cfg, err
			}
		}
	}

	if v := os.Getenv("KUMIRC_MODULE_PATH"); v != "" {
		cfg.ModulePath = strings.Split(v, ":")
	}
	if v := os.Getenv("KUMIRC_VERBOSITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Verbosity = n
		}
	}
	if v := os.Getenv("KUMIRC_CACHE_DSN"); v != "" {
		cfg.CacheDSN = v
	}
	if v := os.Getenv("KUMIRC_TARGET"); v != "" {
		cfg.TargetTriple = v
	}

	return cfg, nil
}
