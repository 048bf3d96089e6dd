// Package config loads dredger configuration.
//
// Sources are layered, later ones winning:
//  1. built-in defaults (Default)
//  2. a YAML file, decoded strictly and validated against an embedded CUE
//     schema
//  3. DREDGER_* environment variables
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DREDGER_"

// Config is the complete runtime configuration.
type Config struct {
	CubeCobra CubeCobra `yaml:"cubecobra" envPrefix:"CUBECOBRA_"`
	Scryfall  Scryfall  `yaml:"scryfall" envPrefix:"SCRYFALL_"`
	HTTP      HTTP      `yaml:"http" envPrefix:"HTTP_"`
	Store     Store     `yaml:"store" envPrefix:"STORE_"`
	History   History   `yaml:"history" envPrefix:"HISTORY_"`

	// Verify enables the forward consistency check while sequencing.
	Verify bool `yaml:"verify" env:"VERIFY"`
}

// CubeCobra configures the cube source.
type CubeCobra struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// LocalDir, when set, reads cube.json and history.json from disk instead
	// of calling the API.
	LocalDir  string        `yaml:"local_dir" env:"LOCAL_DIR"`
	PageDelay time.Duration `yaml:"page_delay" env:"PAGE_DELAY"`
}

// Scryfall configures the migration feed.
type Scryfall struct {
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	Overrides string        `yaml:"overrides" env:"OVERRIDES"`
	PageDelay time.Duration `yaml:"page_delay" env:"PAGE_DELAY"`
}

// HTTP configures the shared HTTP client.
type HTTP struct {
	MaxTries        int           `yaml:"max_tries" env:"MAX_TRIES"`
	InitialInterval time.Duration `yaml:"initial_interval" env:"INITIAL_INTERVAL"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	UserAgent       string        `yaml:"user_agent" env:"USER_AGENT"`
}

// Store configures the SQLite database.
type Store struct {
	Path string `yaml:"path" env:"PATH"`
}

// History configures commit signatures.
type History struct {
	AuthorEmail string `yaml:"author_email" env:"AUTHOR_EMAIL"`
	Description string `yaml:"description" env:"DESCRIPTION"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CubeCobra: CubeCobra{
			BaseURL:   "https://cubecobra.com",
			PageDelay: 50 * time.Millisecond,
		},
		Scryfall: Scryfall{
			BaseURL:   "https://api.scryfall.com",
			Overrides: "manual-migrations.json",
			PageDelay: 50 * time.Millisecond,
		},
		HTTP: HTTP{
			MaxTries:        5,
			InitialInterval: 250 * time.Millisecond,
			Timeout:         30 * time.Second,
			UserAgent:       "dredger",
		},
		Store: Store{
			Path: "dredger.db",
		},
		History: History{
			AuthorEmail: "email@example.com",
			Description: "Reconstructed from the cube changelog",
		},
	}
}

// ValidationError lists every schema violation found in a config file.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s:\n  %s", e.Path, strings.Join(e.Problems, "\n  "))
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ reads the
// process environment.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeFile(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeFile validates data against the schema and decodes it over cfg.
func decodeFile(path string, data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}
	if err := validateSchema(path, raw); err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}
	return nil
}

// validateSchema unifies raw with #Config and reports every violation.
func validateSchema(path string, raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	if raw == nil {
		raw = map[string]any{}
	}
	value := def.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		var problems []string
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, strings.TrimSpace(cueerrors.Details(e, nil)))
		}
		return &ValidationError{Path: path, Problems: problems}
	}
	return nil
}

// Validate checks invariants that hold regardless of source.
func (c Config) Validate() error {
	var problems []string
	if c.HTTP.MaxTries < 1 {
		problems = append(problems, fmt.Sprintf("http.max_tries must be at least 1, got %d", c.HTTP.MaxTries))
	}
	if c.CubeCobra.PageDelay < 0 {
		problems = append(problems, "cubecobra.page_delay must not be negative")
	}
	if c.Scryfall.PageDelay < 0 {
		problems = append(problems, "scryfall.page_delay must not be negative")
	}
	if c.Store.Path == "" {
		problems = append(problems, "store.path must not be empty")
	}
	if !strings.Contains(c.History.AuthorEmail, "@") {
		problems = append(problems, fmt.Sprintf("history.author_email %q is not an email address", c.History.AuthorEmail))
	}
	if len(problems) > 0 {
		return &ValidationError{Path: "(merged)", Problems: problems}
	}
	return nil
}
