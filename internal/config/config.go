// Package config defines the engine configuration document and its schema.
package config

import (
	"encoding/json"
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// EngineConfig is the engine's top-level configuration, loaded from YAML.
type EngineConfig struct {
	Server     ServerConfig     `yaml:"server" json:"server" jsonschema:"title=Server,description=HTTP API settings"`
	Data       DataConfig       `yaml:"data" json:"data" jsonschema:"title=Data,description=Bar store selection"`
	Strategies StrategiesConfig `yaml:"strategies" json:"strategies" jsonschema:"title=Strategies,description=Strategy document source selection"`
	Output     OutputConfig     `yaml:"output" json:"output" jsonschema:"title=Output,description=Session output settings"`
	Costs      CostsConfig      `yaml:"costs" json:"costs" jsonschema:"title=Costs,description=Per-trade cost model"`
	Session    SessionConfig    `yaml:"session" json:"session" jsonschema:"title=Session,description=Session manager limits"`
	LogLevel   string           `yaml:"log_level" json:"log_level" jsonschema:"title=Log Level,description=Minimum log level,enum=debug,enum=info,enum=warn,enum=error" validate:"omitempty,oneof=debug info warn error"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Bind string `yaml:"bind" json:"bind" jsonschema:"title=Bind Address,description=host:port the HTTP API listens on" validate:"required,hostname_port"`
}

// DataConfig selects where sessions read bars from. Exactly one backend must
// be configured.
type DataConfig struct {
	DuckDBPath    optional.Option[string] `yaml:"duckdb_path" json:"duckdb_path" jsonschema:"title=DuckDB Path,description=Path to the DuckDB bars database file"`
	ClickHouseDSN optional.Option[string] `yaml:"clickhouse_dsn" json:"clickhouse_dsn" jsonschema:"title=ClickHouse DSN,description=clickhouse:// DSN for the bars table"`
}

// StrategiesConfig selects where strategy documents are fetched from. Exactly
// one source must be configured.
type StrategiesConfig struct {
	Dir      optional.Option[string] `yaml:"dir" json:"dir" jsonschema:"title=Strategy Directory,description=Directory holding {strategyId}.json documents"`
	HTTPBase optional.Option[string] `yaml:"http_base" json:"http_base" jsonschema:"title=Strategy HTTP Base,description=Base URL serving strategy documents by id"`
}

// OutputConfig holds session output settings.
type OutputConfig struct {
	Root string `yaml:"root" json:"root" jsonschema:"title=Output Root,description=Directory session outputs are written under" validate:"required"`
}

// CostsConfig is the per-trade cost model applied when positions close.
type CostsConfig struct {
	Slippage   float64 `yaml:"slippage" json:"slippage" jsonschema:"title=Slippage,description=Absolute slippage charged per round trip,minimum=0" validate:"gte=0"`
	Commission float64 `yaml:"commission" json:"commission" jsonschema:"title=Commission,description=Absolute commission charged per round trip,minimum=0" validate:"gte=0"`
}

// SessionConfig bounds the session manager.
type SessionConfig struct {
	MaxConcurrent          int     `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"title=Max Concurrent Sessions,minimum=1" validate:"gte=1"`
	DefaultSpeedMultiplier float64 `yaml:"default_speed_multiplier" json:"default_speed_multiplier" jsonschema:"title=Default Speed Multiplier,minimum=1" validate:"gte=1,ltefield=MaxSpeedMultiplier"`
	MaxSpeedMultiplier     float64 `yaml:"max_speed_multiplier" json:"max_speed_multiplier" jsonschema:"title=Max Speed Multiplier,minimum=1" validate:"gte=1"`
	EventBuffer            int     `yaml:"event_buffer" json:"event_buffer" jsonschema:"title=Event Buffer,description=Per-subscriber event buffer before old events are dropped,minimum=1" validate:"gte=1"`
}

// UnmarshalYAML implements custom unmarshaling for DataConfig so optional
// fields read as plain scalars.
func (d *DataConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		DuckDBPath    *string `yaml:"duckdb_path"`
		ClickHouseDSN *string `yaml:"clickhouse_dsn"`
	}

	var raw plain
	if err := unmarshal(&raw); err != nil {
		return err
	}

	d.DuckDBPath = optional.None[string]()
	d.ClickHouseDSN = optional.None[string]()

	if raw.DuckDBPath != nil {
		d.DuckDBPath = optional.Some(*raw.DuckDBPath)
	}

	if raw.ClickHouseDSN != nil {
		d.ClickHouseDSN = optional.Some(*raw.ClickHouseDSN)
	}

	return nil
}

// MarshalYAML renders optional fields as plain scalars, omitted when absent.
func (d DataConfig) MarshalYAML() (interface{}, error) {
	type plain struct {
		DuckDBPath    *string `yaml:"duckdb_path,omitempty"`
		ClickHouseDSN *string `yaml:"clickhouse_dsn,omitempty"`
	}

	var raw plain

	if d.DuckDBPath.IsSome() {
		value := d.DuckDBPath.Unwrap()
		raw.DuckDBPath = &value
	}

	if d.ClickHouseDSN.IsSome() {
		value := d.ClickHouseDSN.Unwrap()
		raw.ClickHouseDSN = &value
	}

	return raw, nil
}

// UnmarshalYAML implements custom unmarshaling for StrategiesConfig so
// optional fields read as plain scalars.
func (s *StrategiesConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		Dir      *string `yaml:"dir"`
		HTTPBase *string `yaml:"http_base"`
	}

	var raw plain
	if err := unmarshal(&raw); err != nil {
		return err
	}

	s.Dir = optional.None[string]()
	s.HTTPBase = optional.None[string]()

	if raw.Dir != nil {
		s.Dir = optional.Some(*raw.Dir)
	}

	if raw.HTTPBase != nil {
		s.HTTPBase = optional.Some(*raw.HTTPBase)
	}

	return nil
}

// MarshalYAML renders optional fields as plain scalars, omitted when absent.
func (s StrategiesConfig) MarshalYAML() (interface{}, error) {
	type plain struct {
		Dir      *string `yaml:"dir,omitempty"`
		HTTPBase *string `yaml:"http_base,omitempty"`
	}

	var raw plain

	if s.Dir.IsSome() {
		value := s.Dir.Unwrap()
		raw.Dir = &value
	}

	if s.HTTPBase.IsSome() {
		value := s.HTTPBase.Unwrap()
		raw.HTTPBase = &value
	}

	return raw, nil
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Server: ServerConfig{
			Bind: ":8080",
		},
		Data: DataConfig{
			DuckDBPath:    optional.Some("data/bars.duckdb"),
			ClickHouseDSN: optional.None[string](),
		},
		Strategies: StrategiesConfig{
			Dir:      optional.Some("strategies"),
			HTTPBase: optional.None[string](),
		},
		Output: OutputConfig{
			Root: "output",
		},
		Costs: CostsConfig{
			Slippage:   0,
			Commission: 0,
		},
		Session: SessionConfig{
			MaxConcurrent:          8,
			DefaultSpeedMultiplier: 1,
			MaxSpeedMultiplier:     1000,
			EventBuffer:            256,
		},
		LogLevel: "info",
	}
}

// Parse decodes YAML bytes over the defaults and validates the result.
func Parse(raw []byte) (*EngineConfig, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse engine config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFile reads, parses, and validates a YAML config file.
func LoadFile(path string) (*EngineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return Parse(raw)
}

// Validate validates the EngineConfig struct.
func (c *EngineConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	if c.Data.DuckDBPath.IsSome() == c.Data.ClickHouseDSN.IsSome() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "exactly one of data.duckdb_path and data.clickhouse_dsn must be set")
	}

	if c.Strategies.Dir.IsSome() == c.Strategies.HTTPBase.IsSome() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "exactly one of strategies.dir and strategies.http_base must be set")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the EngineConfig.
func (c *EngineConfig) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[string]" {
				return &jsonschema.Schema{
					Type: "string",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "engine-config"
	schema.Description = "Configuration schema for the strategy engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates the JSON schema as an indented string.
func (c *EngineConfig) GenerateSchemaJSON() (string, error) {
	schema := c.GenerateSchema()

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeEncodeFailed, "failed to encode config schema", err)
	}

	return string(schemaBytes), nil
}
