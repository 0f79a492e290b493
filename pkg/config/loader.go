// Package config provides configuration loading for the marketplace gateway
// from environment variables, YAML/JSON files, and struct tag defaults.
// Values are resolved in priority order:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file  (medium priority)
//	Environment variables  (highest priority)
//
// # Struct Tags
//
// The loader uses three struct tags to control behavior:
//
//   - `env:"VAR_NAME"` — maps the field to an environment variable
//   - `envDefault:"value"` — sets a default when the field is zero-valued
//   - `required:"true"` — fails validation if the field remains zero after loading
//
// Fields must also have `yaml` or `json` tags for file-based loading,
// since the YAML and JSON unmarshalers use those tags respectively.
//
// # Usage
//
//	cfg := config.MustLoad[GatewayConfig](
//	    config.New().WithEnvPrefix("GATEWAY").WithFile("gateway.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gwerr "github.com/widgetforge/marketplace-gateway/pkg/errors"
)

// durationType caches the reflect.Type for time.Duration. time.Duration
// has Kind() == Int64, so it must be distinguished from plain int64 fields.
var durationType = reflect.TypeOf(time.Duration(0))

// Validator is an optional interface that configuration structs may
// implement for custom validation logic. If the struct passed to
// [Loader.Load] implements Validator, its Validate method is called
// after tag-based `required` validation succeeds.
type Validator interface {
	Validate() error
}

// Loader builds and executes configuration loading with a layered
// resolution strategy. Use [New] to create a Loader and configure it
// with [Loader.WithEnvPrefix] and [Loader.WithFile] before calling
// [Loader.Load].
//
// Loader is not safe for concurrent use. Create a new Loader for each
// Load call, or synchronize access externally.
type Loader struct {
	envPrefix string
	filePath  string
}

// New creates a new [Loader] with default settings: environment
// variables only, no file, no prefix.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix sets a prefix that is prepended (with an underscore
// separator) to all environment variable names derived from the "env"
// struct tag. The prefix is automatically uppercased; an empty prefix
// disables prefixing. Returns the Loader for fluent chaining.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path to a YAML (.yaml/.yml) or JSON (.json)
// configuration file. A missing file is not an error; file-based
// configuration is optional. Returns the Loader for fluent chaining.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates the given struct pointer with configuration values
// resolved in priority order (highest wins): envDefault tags, file
// values, environment variables. After loading, fields tagged
// `required:"true"` must hold non-zero values, and if the struct
// implements [Validator] its Validate method is invoked.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return gwerr.Configuration("config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return gwerr.Configuration("config: Load requires a pointer to a struct")
	}

	if err := walkFields(rv, "", scopeByName, applyDefault); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	if err := walkFields(rv, l.envPrefix, scopeByEnvTag, applyEnv); err != nil {
		return err
	}
	if err := walkFields(rv, "", scopeByName, checkRequired); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isGWErr := gwerr.AsError(err); isGWErr {
				return err
			}
			return gwerr.Wrap(err, gwerr.CodeValidation, "config: custom validation failed")
		}
	}
	return nil
}

// MustLoad is a generic convenience function that creates a zero-valued
// instance of T, loads configuration into it, and returns the populated
// value. It panics if loading or validation fails. Use MustLoad in
// application startup where invalid configuration should prevent the
// process from starting.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile reads a YAML or JSON file and unmarshals it into the config
// struct. Missing files are silently ignored. The path is checked for
// directory traversal sequences before reading.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return gwerr.Configuration("config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return gwerr.Wrapf(err, gwerr.CodeConfiguration, "config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return gwerr.Wrapf(err, gwerr.CodeConfiguration, "config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return gwerr.Wrapf(err, gwerr.CodeConfiguration, "config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return gwerr.Configurationf("config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

// fieldFunc is applied to each settable leaf field during traversal.
// The scope parameter carries the accumulated env prefix (for applyEnv)
// or the dotted field path (for checkRequired).
type fieldFunc func(field reflect.Value, sf reflect.StructField, scope string) error

// scopeFunc computes the scope string passed into a nested struct from
// the enclosing scope and the nested field's StructField.
type scopeFunc func(scope string, sf reflect.StructField) string

// scopeByName accumulates dotted field paths (e.g., "Gateway.TenantDomain")
// for error messages in the defaults and required passes.
func scopeByName(scope string, sf reflect.StructField) string {
	if scope == "" {
		return sf.Name
	}
	return scope + "." + sf.Name
}

// scopeByEnvTag accumulates env tags joined with "_", so a nested struct
// tagged `env:"UPSTREAM"` maps its `env:"TIMEOUT"` field to
// PREFIX_UPSTREAM_TIMEOUT. A nested struct without an env tag does not
// extend the prefix.
func scopeByEnvTag(scope string, sf reflect.StructField) string {
	tag := sf.Tag.Get("env")
	if tag == "" {
		return scope
	}
	if scope == "" {
		return tag
	}
	return scope + "_" + tag
}

// walkFields recursively traverses a struct, applying fn to every
// settable non-struct field and extending the scope via nested for
// nested structs.
func walkFields(rv reflect.Value, scope string, nested scopeFunc, fn fieldFunc) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := walkFields(field, nested(scope, sf), nested, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(field, sf, scope); err != nil {
			return err
		}
	}
	return nil
}

// applyDefault sets the field to its envDefault tag value when the field
// currently holds its zero value.
func applyDefault(field reflect.Value, sf reflect.StructField, _ string) error {
	tag := sf.Tag.Get("envDefault")
	if tag == "" || !field.IsZero() {
		return nil
	}
	if err := setField(field, tag); err != nil {
		return gwerr.Wrapf(err, gwerr.CodeConfiguration,
			"config: failed to apply default for field %q", sf.Name)
	}
	return nil
}

// applyEnv sets the field from the environment variable named by its
// env tag, prefixed with the accumulated scope.
func applyEnv(field reflect.Value, sf reflect.StructField, prefix string) error {
	envTag := sf.Tag.Get("env")
	if envTag == "" {
		return nil
	}
	envKey := envTag
	if prefix != "" {
		envKey = prefix + "_" + envTag
	}
	val, ok := os.LookupEnv(envKey)
	if !ok {
		return nil
	}
	if err := setField(field, val); err != nil {
		return gwerr.Wrapf(err, gwerr.CodeConfiguration,
			"config: failed to set field %q from env var %q", sf.Name, envKey)
	}
	return nil
}

// checkRequired fails when a field tagged `required:"true"` still holds
// its zero value after all layers have been applied.
func checkRequired(field reflect.Value, sf reflect.StructField, path string) error {
	if sf.Tag.Get("required") != "true" {
		return nil
	}
	if field.IsZero() {
		name := sf.Name
		if path != "" {
			name = path + "." + sf.Name
		}
		return gwerr.Newf(gwerr.CodeValidationRequired,
			"config: required field %q is empty", name)
	}
	return nil
}

// setField parses the string value and sets the reflect.Value according
// to its kind. Supported types: string (including named string types
// like auth.Secret), bool, signed integers, time.Duration, and []string
// (comma-separated).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
