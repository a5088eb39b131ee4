// Package config loads gpkgwkb settings from a TOML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	gpkg "github.com/tingold/gpkg-wkb"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GPKGWKB_"

var ErrInvalid = errors.New("config: invalid value")

// Config holds the CLI settings.
type Config struct {
	LogLevel  string `toml:"log_level"`
	Database  string `toml:"database"`
	SRSId     int32  `toml:"srs_id"`     // 0 keeps the srs of each exported table
	ByteOrder string `toml:"byte_order"` // "little" or "big"
	Envelope  bool   `toml:"envelope"`

	Export Export `toml:"export"`
	Serve  Serve  `toml:"serve"`
}

// Export configures FlatGeobuf output.
type Export struct {
	IncludeIndex bool   `toml:"include_index"`
	Description  string `toml:"description"`
}

// Serve configures the HTTP layer server.
type Serve struct {
	Address string `toml:"address"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		LogLevel:  "info",
		ByteOrder: "little",
		Envelope:  true,
		Export:    Export{IncludeIndex: true},
		Serve:     Serve{Address: ":8080"},
	}
}

// Load reads the TOML file at path (skipped when path is empty), then
// the .env files given (missing ones are ignored), then GPKGWKB_*
// environment variables.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return cfg, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
		}
	}

	for _, f := range envFiles {
		// godotenv does not override variables already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("env file %s: %w", f, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("DATABASE"); ok {
		c.Database = v
	}
	if v, ok := lookup("BYTE_ORDER"); ok {
		c.ByteOrder = v
	}
	if v, ok := lookup("ADDRESS"); ok {
		c.Serve.Address = v
	}
	if v, ok := lookup("SRS_ID"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %sSRS_ID=%q", ErrInvalid, EnvPrefix, v)
		}
		c.SRSId = int32(n)
	}
	if v, ok := lookup("ENVELOPE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sENVELOPE=%q", ErrInvalid, EnvPrefix, v)
		}
		c.Envelope = b
	}
	if v, ok := lookup("INCLUDE_INDEX"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sINCLUDE_INDEX=%q", ErrInvalid, EnvPrefix, v)
		}
		c.Export.IncludeIndex = b
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	return strings.TrimSpace(v), ok
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.ByteOrder) {
	case "little", "big":
	default:
		return fmt.Errorf("%w: byte_order %q", ErrInvalid, c.ByteOrder)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}

// Options returns the geometry writing options described by c.
func (c Config) Options() *gpkg.Options {
	opts := gpkg.DefaultOptions()
	if strings.EqualFold(c.ByteOrder, "big") {
		opts.ByteOrder = binary.BigEndian
	}
	opts.Envelope = c.Envelope
	return opts
}

// FlatGeobufOptions returns export options for a layer called name.
func (c Config) FlatGeobufOptions(name string) *gpkg.FlatGeobufOptions {
	return &gpkg.FlatGeobufOptions{
		Name:         name,
		Description:  c.Export.Description,
		IncludeIndex: c.Export.IncludeIndex,
		SRSId:        c.SRSId,
	}
}
