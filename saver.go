package formstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-formstate/pkg/activity"
)

var (
	// ErrProviderRequired is returned by New without a FieldProvider.
	ErrProviderRequired = errors.New("formstate: field provider is required")
	// ErrAlreadyInitialized is returned by a second Init on the same Saver.
	ErrAlreadyInitialized = errors.New("formstate: saver already initialized")
	// ErrClosed is returned by operations on a closed Saver.
	ErrClosed = errors.New("formstate: saver closed")
)

// Outcome reports what a load pass did.
type Outcome struct {
	// Changed is true when at least one field took a new value.
	Changed bool
	// Timestamp is the stored save time, FallbackTimestamp when the record had
	// none, or 0 when nothing changed.
	Timestamp int64
	Source    Source
	Decision  Decision
	// Modified lists the names of changed fields in application order.
	Modified []string
	// Fields holds per-field provenance in lookup order.
	Fields []FieldTrace
	// Fragment is the fragment the trailing save produced.
	Fragment string
}

// Restoration returns the restored notification payload.
func (o Outcome) Restoration() Restoration {
	return Restoration{Changed: o.Changed, Timestamp: o.Timestamp}
}

// Saver keeps one form's state in the location fragment and the store.
type Saver struct {
	provider   FieldProvider
	cfg        config
	transforms *transformSet
	emitter    *activity.Emitter
	listeners  *listenerSet
	sched      *scheduler

	// mu serializes provider, store and location access.
	mu          sync.Mutex
	loading     atomic.Bool
	initialized atomic.Bool
	closed      atomic.Bool
}

// New builds a Saver for provider. Expressions are compiled here, so a bad
// expression fails construction.
func New(provider FieldProvider, opts ...Option) (*Saver, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	cfg := applyOptions(opts)
	transforms, err := newTransformSet(&cfg)
	if err != nil {
		return nil, err
	}

	s := &Saver{
		provider:   provider,
		cfg:        cfg,
		transforms: transforms,
		emitter:    cfg.activity.emitter(),
		listeners:  &listenerSet{},
	}
	for _, l := range cfg.listeners {
		s.listeners.add(l)
	}
	s.sched = newScheduler(cfg.debounce, s.debouncedSave, func(err error) {
		s.log(LevelWarn, "save failed", "", err)
	})
	return s, nil
}

// StorageKey returns the key the record is stored under.
func (s *Saver) StorageKey() string { return s.cfg.storageKey }

// Loading reports whether a load pass is applying values.
func (s *Saver) Loading() bool { return s.loading.Load() }

// Init registers listeners and then either resets or loads, as configured.
// It may run once per Saver.
func (s *Saver) Init(ctx context.Context, listeners ...Listener) (Outcome, error) {
	if s.closed.Load() {
		return Outcome{}, ErrClosed
	}
	if !s.initialized.CompareAndSwap(false, true) {
		return Outcome{}, ErrAlreadyInitialized
	}
	for _, l := range listeners {
		s.listeners.add(l)
	}
	if s.cfg.reset {
		_, err := s.Reset(ctx)
		return Outcome{}, err
	}
	if !s.cfg.autoLoad {
		return Outcome{}, nil
	}
	return s.Load(ctx)
}

// Unload saves immediately and records the focused field name in the
// session store, or removes the marker when focused is empty. A pending
// debounced save is left to run.
func (s *Saver) Unload(ctx context.Context, focused string) error {
	_, saveErr := s.Save(ctx, Immediate())

	var markErr error
	if focused != "" {
		markErr = s.cfg.sessionStore.SetItem(ctx, UnloadFieldKey, focused)
	} else {
		markErr = s.cfg.sessionStore.RemoveItem(ctx, UnloadFieldKey)
	}
	return errors.Join(saveErr, markErr)
}

// Reset erases the stored record (or every key under the reset prefix),
// cancels a pending save and fires the reset notification.
func (s *Saver) Reset(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.sched.cancel()

	s.mu.Lock()
	keys, err := s.resetLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.listeners.reset(ctx, ResetInfo{Keys: keys})
	s.emitReset(ctx, keys)
	return keys, nil
}

func (s *Saver) resetLocked(ctx context.Context) ([]string, error) {
	store := s.cfg.recordStore()
	if s.cfg.resetPrefix != "" {
		return ClearByPrefix(ctx, store, s.cfg.resetPrefix)
	}
	key := s.cfg.resetKey
	if key == "" {
		key = s.cfg.storageKey
	}
	_, ok, err := store.GetItem(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if err := store.RemoveItem(ctx, key); err != nil {
		return nil, err
	}
	return []string{key}, nil
}

// Flush runs a pending debounced save now.
func (s *Saver) Flush(ctx context.Context) error {
	_, err := s.sched.flush(ctx)
	return err
}

// Close stops the debounce timer. A pending save is dropped; call Flush
// first to keep it.
func (s *Saver) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.sched.stop()
	return nil
}

func (s *Saver) log(level LogLevel, msg, field string, err error) {
	s.cfg.logger.Log(LogEvent{
		Level:   level,
		Message: msg,
		Form:    s.cfg.storageKey,
		Field:   field,
		Err:     err,
	})
}
