package formstate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-formstate/pkg/storage"
)

const (
	// DefaultStorageKey names the record when no key is configured.
	DefaultStorageKey = "form"
	// DefaultDebounce is the window repeated save requests coalesce in.
	DefaultDebounce = 100 * time.Millisecond
	// UnloadFieldKey is the session store entry holding the field focused at
	// the last unload.
	UnloadFieldKey = "fs-unload-field"
)

// StorageMode selects the store records are kept in.
type StorageMode uint8

const (
	// StorageLocal uses the persistent store.
	StorageLocal StorageMode = iota
	// StorageSession uses the session-scoped store instead.
	StorageSession
	// StorageDisabled keeps state in the fragment only.
	StorageDisabled
)

func (m StorageMode) String() string {
	switch m {
	case StorageSession:
		return "session"
	case StorageDisabled:
		return "disabled"
	default:
		return "local"
	}
}

// ParseStorageMode accepts "local", "session" and "disabled" (or "none").
func ParseStorageMode(text string) (StorageMode, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "local":
		return StorageLocal, true
	case "session":
		return StorageSession, true
	case "disabled", "none", "off":
		return StorageDisabled, true
	default:
		return StorageLocal, false
	}
}

// Location is the document location whose fragment carries field values.
type Location interface {
	// Hash returns the current fragment including its leading '#', or "".
	Hash(ctx context.Context) (string, error)
	// ReplaceHash swaps the fragment without adding a history entry.
	ReplaceHash(ctx context.Context, hash string) error
}

// MemoryLocation is an in-process Location.
type MemoryLocation struct {
	mu   sync.RWMutex
	hash string
}

// NewMemoryLocation returns a location starting at hash.
func NewMemoryLocation(hash string) *MemoryLocation {
	return &MemoryLocation{hash: hash}
}

func (l *MemoryLocation) Hash(context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hash, nil
}

func (l *MemoryLocation) ReplaceHash(_ context.Context, hash string) error {
	l.mu.Lock()
	l.hash = hash
	l.mu.Unlock()
	return nil
}

// Option configures a Saver.
type Option func(*config)

type config struct {
	storageKey     string
	keepFirstHash  bool
	useFragment    bool
	storageMode    StorageMode
	storePasswords bool
	keyField       KeyField
	autoLoad       bool
	resetKey       string
	resetPrefix    string
	reset          bool
	debounce       time.Duration

	store        storage.Store
	sessionStore storage.Store
	location     Location
	clock        func() time.Time
	logger       Logger

	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry

	transforms       map[string]Transform
	expressions      map[string]string
	recordFilter     RecordFilter
	recordFilterExpr string

	activity  activityConfig
	listeners []Listener
}

func defaultConfig() config {
	return config{
		storageKey:  DefaultStorageKey,
		useFragment: true,
		autoLoad:    true,
		debounce:    DefaultDebounce,
		clock:       time.Now,
		logger:      noopLogger{},
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.store == nil {
		cfg.store = storage.NewMemoryStore()
	}
	if cfg.sessionStore == nil {
		cfg.sessionStore = storage.NewMemoryStore()
	}
	if cfg.location == nil {
		cfg.location = NewMemoryLocation("")
	}
	return cfg
}

func (cfg config) useStorage() bool { return cfg.storageMode != StorageDisabled }

// recordStore is the store records and shadow entries go to.
func (cfg config) recordStore() storage.Store {
	if cfg.storageMode == StorageSession {
		return cfg.sessionStore
	}
	return cfg.store
}

// WithStorageKey names the record. Concurrent forms on one page need
// distinct keys.
func WithStorageKey(key string) Option {
	return func(cfg *config) {
		if key = strings.TrimSpace(key); key != "" {
			cfg.storageKey = key
		}
	}
}

// WithKeepFirstHash preserves the fragment segment before the first '&'.
func WithKeepFirstHash(keep bool) Option {
	return func(cfg *config) {
		cfg.keepFirstHash = keep
	}
}

// WithFragment toggles reading and writing the URL fragment.
func WithFragment(enabled bool) Option {
	return func(cfg *config) {
		cfg.useFragment = enabled
	}
}

// WithStorageMode selects the persistent store, the session store or none.
func WithStorageMode(mode StorageMode) Option {
	return func(cfg *config) {
		cfg.storageMode = mode
	}
}

// WithStorePasswords opts password fields into saving and loading.
func WithStorePasswords(store bool) Option {
	return func(cfg *config) {
		cfg.storePasswords = store
	}
}

// WithKeyField makes the named field decide between fragment and storage.
func WithKeyField(name string) Option {
	return func(cfg *config) {
		cfg.keyField = KeyField{Name: strings.TrimSpace(name)}
	}
}

// WithGenericKeyField lets the first field with a value decide between
// fragment and storage.
func WithGenericKeyField() Option {
	return func(cfg *config) {
		cfg.keyField = KeyField{Generic: true}
	}
}

// WithAutoLoad controls whether Init runs a load pass. Default true.
func WithAutoLoad(load bool) Option {
	return func(cfg *config) {
		cfg.autoLoad = load
	}
}

// WithReset makes Init erase the record stored under key instead of loading.
// An empty key erases the configured storage key.
func WithReset(key string) Option {
	return func(cfg *config) {
		cfg.reset = true
		cfg.resetKey = strings.TrimSpace(key)
		cfg.resetPrefix = ""
	}
}

// WithResetPrefix makes Init erase every entry whose key starts with prefix
// instead of loading.
func WithResetPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.reset = true
		cfg.resetPrefix = prefix
		cfg.resetKey = ""
	}
}

// WithDebounce sets the save coalescing window. Non-positive values keep the
// default.
func WithDebounce(window time.Duration) Option {
	return func(cfg *config) {
		if window > 0 {
			cfg.debounce = window
		}
	}
}

// WithStore sets the persistent store.
func WithStore(store storage.Store) Option {
	return func(cfg *config) {
		cfg.store = store
	}
}

// WithSessionStore sets the session-scoped store. It also keeps the
// last-focused field marker.
func WithSessionStore(store storage.Store) Option {
	return func(cfg *config) {
		cfg.sessionStore = store
	}
}

// WithLocation sets the location whose fragment is read and replaced.
func WithLocation(location Location) Option {
	return func(cfg *config) {
		cfg.location = location
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.clock = now
		}
	}
}

// WithEvaluator configures the evaluator used for field and record filter
// expressions.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}
