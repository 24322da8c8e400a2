package formstate

import (
	"context"
	"encoding/json"
	"fmt"
)

// SaveOption adjusts a single Save request.
type SaveOption func(*saveRequest)

type saveRequest struct {
	fragmentOnly bool
	immediate    bool
}

// FragmentOnly skips the store write and runs synchronously, even while a
// load pass is applying values.
func FragmentOnly() SaveOption {
	return func(r *saveRequest) { r.fragmentOnly = true }
}

// Immediate saves synchronously instead of waiting for the debounce window.
func Immediate() SaveOption {
	return func(r *saveRequest) { r.immediate = true }
}

// Save requests a save of the current field values. Fragment-only and
// immediate requests run now and return the fragment they produced; other
// requests are debounced and return "". Requests made while a load pass is
// applying values are dropped, unless fragment-only.
func (s *Saver) Save(ctx context.Context, opts ...SaveOption) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	var req saveRequest
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}

	if req.fragmentOnly || !s.cfg.useStorage() {
		return s.commit(ctx, false, true)
	}
	if s.loading.Load() {
		return "", nil
	}
	if req.immediate {
		return s.commit(ctx, true, true)
	}
	s.sched.request(ctx)
	return "", nil
}

func (s *Saver) debouncedSave(ctx context.Context) error {
	if s.loading.Load() {
		return nil
	}
	_, err := s.commit(ctx, true, true)
	return err
}

// snapshot is the encoded state of the live form.
type snapshot struct {
	record Record
	// pairs is the fragment parameter list: field values in form order with
	// d-<name> flags after the fields they shadow.
	pairs []Pair
	// shadows holds the 1/0 disabled-state entries for tracked fields.
	shadows []Pair
}

type pairList struct {
	pairs []Pair
	index map[string]int
}

// put sets name, keeping the position of its first occurrence.
func (l *pairList) put(name string, v Value) {
	if l.index == nil {
		l.index = map[string]int{}
	}
	if i, ok := l.index[name]; ok {
		l.pairs[i].Value = v
		return
	}
	l.index[name] = len(l.pairs)
	l.pairs = append(l.pairs, Pair{Name: name, Value: v})
}

func (s *Saver) snapshotLocked(ctx context.Context) (snapshot, error) {
	listed, err := s.provider.ListFields(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("formstate: list fields: %w", err)
	}
	fields := servedFields(listed, s.cfg.storePasswords)
	groups, err := scanRadioGroups(ctx, s.provider, fields)
	if err != nil {
		return snapshot{}, err
	}

	var values, frag pairList
	var shadows []Pair
	tracked := map[string]bool{}
	for _, f := range fields {
		v, contribute, err := encodeField(ctx, s.provider, f, groups)
		if err != nil {
			s.log(LevelWarn, "encode failed", f.Name, err)
			continue
		}
		if contribute {
			values.put(f.Name, v)
			frag.put(f.Name, v)
		}

		if !f.TrackDisabled || tracked[f.Name] {
			continue
		}
		tracked[f.Name] = true
		disabled, err := s.provider.Disabled(ctx, f)
		if err != nil {
			s.log(LevelWarn, "read disabled state failed", f.Name, err)
			continue
		}
		flag := Number(0)
		if disabled {
			flag = Number(1)
			frag.put(DisabledPrefix+f.Name, flag)
		}
		shadows = append(shadows, Pair{Name: f.Name, Value: flag})
	}

	record := NewRecord()
	for _, p := range values.pairs {
		record.Set(p.Name, p.Value)
	}
	return snapshot{record: record, pairs: frag.pairs, shadows: shadows}, nil
}

// commit encodes the form and writes the requested representations. The
// fragment is always computed when fragments are in use and is returned.
func (s *Saver) commit(ctx context.Context, writeStore, writeFragment bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshotLocked(ctx)
	if err != nil {
		return "", err
	}

	if writeStore && s.cfg.useStorage() {
		if err := s.writeRecordLocked(ctx, snap); err != nil {
			return "", err
		}
	}

	if !s.cfg.useFragment {
		return "", nil
	}
	current, err := s.cfg.location.Hash(ctx)
	if err != nil {
		return "", fmt.Errorf("formstate: read location: %w", err)
	}
	fragment := SerializeFragment(snap.pairs, current, s.cfg.keepFirstHash)
	if writeFragment && fragment != current {
		if err := s.cfg.location.ReplaceHash(ctx, fragment); err != nil {
			return fragment, fmt.Errorf("formstate: replace location: %w", err)
		}
	}
	return fragment, nil
}

func (s *Saver) writeRecordLocked(ctx context.Context, snap snapshot) error {
	store := s.cfg.recordStore()
	record := snap.record
	record.SetTimestamp(s.cfg.clock().UnixMilli())
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("formstate: encode record: %w", err)
	}
	if err := store.SetItem(ctx, s.cfg.storageKey, string(raw)); err != nil {
		return fmt.Errorf("formstate: write record %q: %w", s.cfg.storageKey, err)
	}
	for _, shadow := range snap.shadows {
		key := s.shadowKey(shadow.Name)
		if err := store.SetItem(ctx, key, shadow.Value.Text()); err != nil {
			return fmt.Errorf("formstate: write disabled shadow %q: %w", key, err)
		}
	}
	return nil
}
