package formstate

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstate/pkg/storage"
)

type loadPass struct {
	resolution *Resolution
	record     Record
	changes    *changeSet
}

// Load restores field values from the fragment and the store, then writes
// back the non-authoritative representation. Only a failure to enumerate
// fields or to read the location is returned; per-field problems are logged
// and the field is skipped.
func (s *Saver) Load(ctx context.Context) (Outcome, error) {
	if s.closed.Load() {
		return Outcome{}, ErrClosed
	}

	s.mu.Lock()
	s.loading.Store(true)
	pass, err := s.loadLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		s.loading.Store(false)
		return Outcome{}, err
	}

	modified := pass.changes.Fields()
	s.notifyChanges(ctx, modified)
	s.loading.Store(false)

	restoration := pass.changes.restoration(pass.record)
	out := Outcome{
		Changed:   restoration.Changed,
		Timestamp: restoration.Timestamp,
		Source:    pass.resolution.Source(),
		Decision:  pass.resolution.Decision(),
		Modified:  modifiedNames(modified),
		Fields:    pass.resolution.Traces(),
	}

	fragment, err := s.trailingSave(ctx, out.Source)
	if err != nil {
		s.log(LevelWarn, "trailing save failed", "", err)
	}
	out.Fragment = fragment

	if out.Changed {
		s.listeners.restored(ctx, restoration)
		s.emitRestored(ctx, out)
	}
	return out, nil
}

func (s *Saver) loadLocked(ctx context.Context) (*loadPass, error) {
	listed, err := s.provider.ListFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("formstate: list fields: %w", err)
	}
	fields := servedFields(listed, s.cfg.storePasswords)

	var frag Fragment
	if s.cfg.useFragment {
		hash, err := s.cfg.location.Hash(ctx)
		if err != nil {
			return nil, fmt.Errorf("formstate: read location: %w", err)
		}
		frag = ParseFragment(hash, s.cfg.keepFirstHash)
	}

	record := NewRecord()
	useStorage := s.cfg.useStorage()
	var shadows map[string]Value
	var lastFocused string
	if useStorage {
		store := s.cfg.recordStore()
		record, useStorage = s.readRecord(ctx, store, frag)
		shadows = s.readShadows(ctx, store, fields)
		lastFocused = s.lastFocused(ctx)
	}

	res := Reconcile(ReconcileInput{
		Record:      record,
		Fragment:    frag,
		Shadows:     shadows,
		UseFragment: s.cfg.useFragment,
		UseStorage:  useStorage,
		KeyField:    s.cfg.keyField,
		LastFocused: lastFocused,
	})

	pass := &loadPass{resolution: res, record: record, changes: newChangeSet()}
	resolved := map[string]resolvedValue{}
	for _, f := range fields {
		rv, ok := resolved[f.Name]
		if !ok {
			rv = s.resolve(ctx, f, res, record, frag)
			resolved[f.Name] = rv
		}
		if rv.skip {
			continue
		}

		changed, err := applyField(ctx, s.provider, f, rv.value)
		if err != nil {
			s.log(LevelWarn, "apply failed", f.Name, err)
			continue
		}
		if changed {
			pass.changes.mark(f)
		}
		if f.TrackDisabled {
			s.applyDisabled(ctx, f, res, pass.changes)
		}
	}
	return pass, nil
}

type resolvedValue struct {
	value Value
	skip  bool
}

// resolve looks the name up once and runs its transforms. Radio members
// share the result.
func (s *Saver) resolve(ctx context.Context, f Field, res *Resolution, record Record, frag Fragment) resolvedValue {
	raw := res.Lookup(f.Name)
	value, err := s.transforms.apply(ctx, f, raw, record, frag)
	if err != nil {
		s.log(LevelWarn, "transform failed", f.Name, err)
		return resolvedValue{skip: true}
	}
	return resolvedValue{value: value}
}

// applyDisabled disables f when its shadow resolves above zero. A shadow of
// zero leaves the live state alone.
func (s *Saver) applyDisabled(ctx context.Context, f Field, res *Resolution, changes *changeSet) {
	if !res.Disabled(f.Name).Positive() {
		return
	}
	disabled, err := s.provider.Disabled(ctx, f)
	if err != nil {
		s.log(LevelWarn, "read disabled state failed", f.Name, err)
		return
	}
	if disabled {
		return
	}
	if err := s.provider.SetDisabled(ctx, f, true); err != nil {
		s.log(LevelWarn, "disable failed", f.Name, err)
		return
	}
	changes.mark(f)
}

// readRecord reads, parses and filters the stored record. The bool is false
// when the record filter cancelled storage for this pass.
func (s *Saver) readRecord(ctx context.Context, store storage.Store, frag Fragment) (Record, bool) {
	record := NewRecord()
	raw, ok, err := store.GetItem(ctx, s.cfg.storageKey)
	if err != nil {
		s.log(LevelWarn, "read record failed", "", err)
	} else if ok {
		parsed, err := ParseRecord(raw)
		if err != nil {
			s.log(LevelDebug, "malformed record ignored", "", err)
		} else {
			record = parsed
		}
	}

	filtered, keep, err := s.transforms.filterRecord(ctx, record, frag)
	if err != nil {
		s.log(LevelWarn, "record filter failed", "", err)
		return record, true
	}
	if !keep {
		s.log(LevelDebug, "record filter cancelled storage", "", nil)
		return NewRecord(), false
	}
	return filtered, true
}

func (s *Saver) readShadows(ctx context.Context, store storage.Store, fields []Field) map[string]Value {
	shadows := map[string]Value{}
	for _, f := range fields {
		if !f.TrackDisabled {
			continue
		}
		if _, seen := shadows[f.Name]; seen {
			continue
		}
		raw, ok, err := store.GetItem(ctx, s.shadowKey(f.Name))
		if err != nil {
			s.log(LevelWarn, "read disabled shadow failed", f.Name, err)
			continue
		}
		if ok {
			shadows[f.Name] = String(raw)
		}
	}
	return shadows
}

func (s *Saver) lastFocused(ctx context.Context) string {
	name, ok, err := s.cfg.sessionStore.GetItem(ctx, UnloadFieldKey)
	if err != nil {
		s.log(LevelWarn, "read unload marker failed", "", err)
		return ""
	}
	if !ok {
		return ""
	}
	return name
}

func (s *Saver) shadowKey(name string) string {
	return s.cfg.storageKey + DisabledPrefix + name
}

// notifyChanges runs outside the lock with the loading flag still set, so
// saves requested by change handlers are suppressed.
func (s *Saver) notifyChanges(ctx context.Context, fields []Field) {
	notifier, ok := s.provider.(ChangeNotifier)
	if !ok {
		return
	}
	for _, f := range fields {
		if err := notifier.NotifyChange(ctx, f); err != nil {
			s.log(LevelWarn, "change notification failed", f.Name, err)
		}
	}
}

// trailingSave writes whichever representation the pass did not load from:
// storage after a fragment load, the fragment otherwise.
func (s *Saver) trailingSave(ctx context.Context, source Source) (string, error) {
	if source == SourceFragment {
		return s.commit(ctx, s.cfg.useStorage(), false)
	}
	return s.commit(ctx, false, true)
}

func modifiedNames(fields []Field) []string {
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	return names
}
