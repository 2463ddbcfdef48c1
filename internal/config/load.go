// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable Coursebook reads, apart from
// the legacy names in legacyEnv.
const EnvPrefix = "COURSEBOOK_"

// DefaultEnvFile is read when LoadOptions.EnvFile is empty.
const DefaultEnvFile = ".env"

// legacyEnv maps unprefixed variable names to keys. Later entries win.
var legacyEnv = []struct{ name, key string }{
	{"POSTGRES_URL", "database.url"},
	{"DATABASE_URL", "database.url"},
	{"SECRET_KEY", "secret_key"},
}

// flagKeys maps command-line flags registered by BindFlags to keys.
var flagKeys = map[string]string{
	"addr":         "http.addr",
	"metrics-addr": "metrics.addr",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// LoadOptions selects the optional sources for Load.
type LoadOptions struct {
	// File is a YAML config file. Empty means none.
	File string
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
	// Flags are parsed command-line flags registered with BindFlags.
	Flags *pflag.FlagSet
}

// BindFlags registers the config override flags on flags.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("addr", d.HTTP.Addr, "web server listen address")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.Bool("auto-migrate", false, "apply pending migrations on startup")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Load builds a Config from defaults, opts.File, the dotenv file, the
// environment and opts.Flags. It does not call Validate.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaultValues(Default()) {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("file", opts.File).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("file", opts.File).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.File), kyaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, oops.Code("CONFIG_READ_FAILED").With("file", envFile).Wrap(err)
	default:
		if err := setEnvMap(k, dotenv); err != nil {
			return nil, err
		}
	}

	for _, legacy := range legacyEnv {
		name, key := legacy.name, legacy.key
		provider := env.ProviderWithValue(name, ".", func(envName, value string) (string, any) {
			if envName != name || value == "" {
				return "", nil
			}
			return key, value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", name).Wrap(err)
		}
	}

	keys := envKeys()
	prefixed := env.ProviderWithValue(EnvPrefix, ".", func(envName, value string) (string, any) {
		return keys[envName], value
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", EnvPrefix+"*").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

// setEnvMap applies dotenv values with the same names and precedence as the
// process environment.
func setEnvMap(k *koanf.Koanf, vars map[string]string) error {
	apply := func(key, value string) error {
		if err := k.Set(key, value); err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
		return nil
	}
	for _, legacy := range legacyEnv {
		if value := vars[legacy.name]; value != "" {
			if err := apply(legacy.key, value); err != nil {
				return err
			}
		}
	}
	keys := envKeys()
	for name, value := range vars {
		if key, ok := keys[name]; ok {
			if err := apply(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnvName returns the prefixed environment variable for key,
// e.g. "session.short_ttl" becomes COURSEBOOK_SESSION_SHORT_TTL.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// envKeys maps each prefixed environment variable to its key.
func envKeys() map[string]string {
	values := defaultValues(Default())
	out := make(map[string]string, len(values))
	for key := range values {
		out[EnvName(key)] = key
	}
	return out
}

// defaultValues flattens c into dotted keys. It is also the list of known keys.
func defaultValues(c Config) map[string]any {
	return map[string]any{
		"http.addr":                c.HTTP.Addr,
		"http.cookie_secure":       c.HTTP.CookieSecure,
		"http.rate_limit":          c.HTTP.RateLimit,
		"metrics.addr":             c.Metrics.Addr,
		"database.url":             c.Database.URL,
		"database.auto_migrate":    c.Database.AutoMigrate,
		"database.connect_retries": c.Database.ConnectRetries,
		"secret_key":               c.SecretKey,
		"session.short_ttl":        c.Session.ShortTTL,
		"session.long_ttl":         c.Session.LongTTL,
		"session.sweep_interval":   c.Session.SweepInterval,
		"hasher.time":              c.Hasher.Time,
		"hasher.memory":            c.Hasher.Memory,
		"hasher.threads":           c.Hasher.Threads,
		"log.format":               c.Log.Format,
		"log.level":                c.Log.Level,
	}
}
