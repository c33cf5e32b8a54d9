// Package config loads the run configuration of the Phen2Gene adapter.
//
// Loading happens in fixed stages:
//
//  1. strict YAML decoding (unknown keys are errors)
//  2. PHEN2GENE_* environment overrides
//  3. defaults for every unset field
//  4. validation against the embedded CUE schema
//
// The resulting Config is treated as immutable for the rest of the run.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
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

// ErrInvalidConfig matches every configuration loading or validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Environment selects the execution strategy of the dispatcher.
type Environment string

const (
	EnvironmentLocal  Environment = "local"
	EnvironmentDocker Environment = "docker"
)

// PullPolicy controls when the container image is pulled.
type PullPolicy string

const (
	PullAlways  PullPolicy = "always"
	PullMissing PullPolicy = "missing"
	PullNever   PullPolicy = "never"
)

// Defaults applied to unset fields.
const (
	DefaultPython       = "python3"
	DefaultWeightModel  = "sk"
	DefaultImage        = "genomicslab/phen2gene"
	DefaultResultsMount = "/phen2gene-results"
	DefaultDataMount    = "/phen2gene-data"
	DefaultSortOrder    = "descending"
	DefaultScheme       = "ensembl_id"
	DefaultUnresolved   = "keep"
	DefaultTiePolicy    = "dense"
)

// Config is the whole configuration file.
type Config struct {
	Tool        string            `yaml:"tool" json:"tool"`
	ToolVersion string            `yaml:"tool_version" json:"tool_version"`
	Run         RunConfig         `yaml:"run" json:"run"`
	Docker      DockerConfig      `yaml:"docker" json:"docker"`
	PostProcess PostProcessConfig `yaml:"post_process" json:"post_process"`
}

// RunConfig selects and parameterizes the execution environment.
type RunConfig struct {
	Environment      Environment   `yaml:"environment" json:"environment"`
	ExecutablePath   string        `yaml:"path_to_phen2gene_executable" json:"path_to_phen2gene_executable"`
	Python           string        `yaml:"python" json:"python"`
	CondaEnvironment string        `yaml:"conda_environment" json:"conda_environment"`
	WeightModel      string        `yaml:"weight_model" json:"weight_model"`
	CommandTimeout   time.Duration `yaml:"command_timeout" json:"command_timeout"`
}

// DockerConfig describes the container image and its in-container mounts.
type DockerConfig struct {
	Image        string     `yaml:"image" json:"image"`
	ResultsMount string     `yaml:"results_mount" json:"results_mount"`
	DataMount    string     `yaml:"data_mount" json:"data_mount"`
	Pull         PullPolicy `yaml:"pull" json:"pull"`
}

// PostProcessConfig controls result standardization.
type PostProcessConfig struct {
	SortOrder             string `yaml:"sort_order" json:"sort_order"`
	IdentifierScheme      string `yaml:"identifier_scheme" json:"identifier_scheme"`
	UnresolvedIdentifiers string `yaml:"unresolved_identifiers" json:"unresolved_identifiers"`
	TiePolicy             string `yaml:"tie_policy" json:"tie_policy"`
}

// overrides are read from PHEN2GENE_* environment variables. Empty values
// leave the file setting untouched.
type overrides struct {
	Environment      string `env:"ENVIRONMENT"`
	ExecutablePath   string `env:"EXECUTABLE_PATH"`
	CondaEnvironment string `env:"CONDA_ENVIRONMENT"`
	CommandTimeout   string `env:"COMMAND_TIMEOUT"`
	DockerImage      string `env:"DOCKER_IMAGE"`
	DockerPull       string `env:"DOCKER_PULL"`
	SortOrder        string `env:"SORT_ORDER"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PHEN2GENE_"

// LoadOptions tunes Load. The zero value reads the process environment.
type LoadOptions struct {
	// Env replaces the process environment when non-nil.
	Env map[string]string
}

// Load reads, overrides, defaults and validates the config file at path.
func Load(path string, opts LoadOptions) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
	}
	return Parse(data, opts)
}

// Parse is Load on an in-memory document.
func Parse(data []byte, opts LoadOptions) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	if err := cfg.applyOverrides(opts.Env); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyOverrides(environ map[string]string) error {
	var o overrides
	envOpts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		envOpts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, envOpts); err != nil {
		return fmt.Errorf("%w: environment overrides: %v", ErrInvalidConfig, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	if o.Environment != "" {
		c.Run.Environment = Environment(o.Environment)
	}
	set(&c.Run.ExecutablePath, o.ExecutablePath)
	set(&c.Run.CondaEnvironment, o.CondaEnvironment)
	set(&c.Docker.Image, o.DockerImage)
	if o.DockerPull != "" {
		c.Docker.Pull = PullPolicy(o.DockerPull)
	}
	set(&c.PostProcess.SortOrder, o.SortOrder)
	if o.CommandTimeout != "" {
		d, err := time.ParseDuration(o.CommandTimeout)
		if err != nil {
			return fmt.Errorf("%w: %sCOMMAND_TIMEOUT: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		c.Run.CommandTimeout = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	if c.Tool == "" {
		c.Tool = "phen2gene"
	}
	def(&c.Run.Python, DefaultPython)
	def(&c.Run.WeightModel, DefaultWeightModel)
	def(&c.Docker.Image, DefaultImage)
	def(&c.Docker.ResultsMount, DefaultResultsMount)
	def(&c.Docker.DataMount, DefaultDataMount)
	if c.Docker.Pull == "" {
		c.Docker.Pull = PullMissing
	}
	def(&c.PostProcess.SortOrder, DefaultSortOrder)
	def(&c.PostProcess.IdentifierScheme, DefaultScheme)
	def(&c.PostProcess.UnresolvedIdentifiers, DefaultUnresolved)
	def(&c.PostProcess.TiePolicy, DefaultTiePolicy)
}

// Validate checks c against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("%w: compile schema: %v", ErrInvalidConfig, err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}
