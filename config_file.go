package formstate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-formstate/pkg/activity"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure of a FileConfig.
var ErrInvalidConfig = errors.New("formstate: invalid config")

// GenericKeyField is the key_field value that selects the first field with a
// value.
const GenericKeyField = "*"

// FileConfig is the YAML form of a Saver configuration. Unset pointer fields
// keep the defaults.
type FileConfig struct {
	StorageKey     string            `yaml:"storage_key"`
	KeepFirstHash  bool              `yaml:"keep_first_hash"`
	Fragment       *bool             `yaml:"fragment"`
	Storage        string            `yaml:"storage"`
	StorePasswords bool              `yaml:"store_passwords"`
	KeyField       string            `yaml:"key_field"`
	AutoLoad       *bool             `yaml:"auto_load"`
	Reset          *ResetConfig      `yaml:"reset"`
	Debounce       string            `yaml:"debounce"`
	Engine         string            `yaml:"engine"`
	Expressions    map[string]string `yaml:"expressions"`
	RecordFilter   string            `yaml:"record_filter"`
	Activity       *ActivityConfig   `yaml:"activity"`
}

// ResetConfig erases stored state on Init. Prefix wins over Key.
type ResetConfig struct {
	Key    string `yaml:"key"`
	Prefix string `yaml:"prefix"`
}

// ActivityConfig mirrors activity.Config with identity fields.
type ActivityConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Channel  string `yaml:"channel"`
	ActorID  string `yaml:"actor_id"`
	UserID   string `yaml:"user_id"`
	TenantID string `yaml:"tenant_id"`
}

// LoadConfigFile reads and validates a YAML config file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("formstate: read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML config text. Unknown keys are rejected.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *FileConfig) validate() error {
	if _, ok := ParseStorageMode(c.Storage); !ok {
		return fmt.Errorf("%w: storage %q", ErrInvalidConfig, c.Storage)
	}
	if c.Debounce != "" {
		d, err := time.ParseDuration(c.Debounce)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: debounce %q", ErrInvalidConfig, c.Debounce)
		}
	}
	for name, expr := range c.Expressions {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(expr) == "" {
			return fmt.Errorf("%w: expression for %q is empty", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Options converts the file into Saver options. registry may be nil.
func (c *FileConfig) Options(registry *FunctionRegistry) ([]Option, error) {
	if c == nil {
		return nil, nil
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	mode, _ := ParseStorageMode(c.Storage)
	opts := []Option{
		WithStorageKey(c.StorageKey),
		WithKeepFirstHash(c.KeepFirstHash),
		WithStorageMode(mode),
		WithStorePasswords(c.StorePasswords),
	}
	if c.Fragment != nil {
		opts = append(opts, WithFragment(*c.Fragment))
	}
	if c.AutoLoad != nil {
		opts = append(opts, WithAutoLoad(*c.AutoLoad))
	}
	switch key := strings.TrimSpace(c.KeyField); key {
	case "":
	case GenericKeyField:
		opts = append(opts, WithGenericKeyField())
	default:
		opts = append(opts, WithKeyField(key))
	}
	if c.Reset != nil {
		if c.Reset.Prefix != "" {
			opts = append(opts, WithResetPrefix(c.Reset.Prefix))
		} else {
			opts = append(opts, WithReset(c.Reset.Key))
		}
	}
	if c.Debounce != "" {
		d, _ := time.ParseDuration(c.Debounce)
		opts = append(opts, WithDebounce(d))
	}

	if len(c.Expressions) > 0 || c.RecordFilter != "" || c.Engine != "" {
		evaluator, err := EvaluatorByName(c.Engine, NewMemoryProgramCache(), registry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithEvaluator(evaluator))
	}
	names := make([]string, 0, len(c.Expressions))
	for name := range c.Expressions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, WithFieldExpression(name, c.Expressions[name]))
	}
	if c.RecordFilter != "" {
		opts = append(opts, WithRecordFilterExpression(c.RecordFilter))
	}

	if a := c.Activity; a != nil {
		enabled := true
		if a.Enabled != nil {
			enabled = *a.Enabled
		}
		opts = append(opts,
			WithActivityConfig(activity.Config{Enabled: enabled, Channel: a.Channel}),
			WithActivityIdentity(a.ActorID, a.UserID, a.TenantID),
		)
	}
	return opts, nil
}
