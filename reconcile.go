package formstate

import "strings"

// DisabledPrefix namespaces disabled-state shadow entries, both in the
// fragment (d-name=1) and in the store (<storageKey>d-name).
const DisabledPrefix = "d-"

// Source names where a value or a whole load pass came from.
type Source uint8

const (
	SourceNone Source = iota
	SourceFragment
	SourceStorage
)

func (s Source) String() string {
	switch s {
	case SourceFragment:
		return "fragment"
	case SourceStorage:
		return "storage"
	default:
		return "none"
	}
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fragment":
		*s = SourceFragment
	case "storage":
		*s = SourceStorage
	default:
		*s = SourceNone
	}
	return nil
}

// Decision records which rule settled the fragment/storage question.
type Decision uint8

const (
	// DecisionDefault: no disambiguation was needed; the fragment wins per
	// field and storage fills what it omits.
	DecisionDefault Decision = iota
	// DecisionRefresh: the fragment matched storage everywhere except the
	// last-focused field, so the page was refreshed and storage is newer.
	DecisionRefresh
	// DecisionNavigation: the fragment differs elsewhere too and stays
	// authoritative.
	DecisionNavigation
	// DecisionKeyField: a key field pinned one source for the whole pass.
	DecisionKeyField
)

func (d Decision) String() string {
	switch d {
	case DecisionRefresh:
		return "refresh"
	case DecisionNavigation:
		return "navigation"
	case DecisionKeyField:
		return "key-field"
	default:
		return "default"
	}
}

func (d Decision) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// KeyField is the source discriminator. A literal Name pins the source up
// front; Generic pins it on the first looked-up field that has a value.
type KeyField struct {
	Name    string
	Generic bool
}

func (k KeyField) enabled() bool { return k.Name != "" || k.Generic }

// ReconcileInput carries everything the reconciler decides on.
type ReconcileInput struct {
	Record   Record
	Fragment Fragment
	// Shadows holds stored disabled-state entries keyed by field name.
	Shadows     map[string]Value
	UseFragment bool
	UseStorage  bool
	KeyField    KeyField
	// LastFocused is the field name recorded at the previous unload, if any.
	LastFocused string
}

// Resolution answers per-field lookups for one load pass.
type Resolution struct {
	record      Record
	fragment    Fragment
	shadows     map[string]Value
	useFragment bool
	useStorage  bool
	armed       bool
	decision    Decision
	traces      []FieldTrace
}

// Reconcile decides between the fragment and the storage record.
//
// The refresh test is a heuristic: a user who edits one field, then another,
// and refreshes before the fragment catches up is read as navigating. It is
// best-effort, not proof of where the page load came from.
func Reconcile(in ReconcileInput) *Resolution {
	r := &Resolution{
		record:      in.Record,
		fragment:    in.Fragment,
		shadows:     in.Shadows,
		useFragment: in.UseFragment,
		useStorage:  in.UseStorage,
	}
	if !r.useFragment || !r.useStorage || r.fragment.Empty() {
		return r
	}

	if last := in.LastFocused; last != "" && !sameValue(r.fragment.Lookup(last), r.stored(last)) {
		if r.othersMatchStorage(last) {
			r.useFragment = false
			r.decision = DecisionRefresh
		} else {
			r.decision = DecisionNavigation
		}
		return r
	}

	switch {
	case in.KeyField.Name != "":
		r.decision = DecisionKeyField
		if _, ok := r.fragment.Component(in.KeyField.Name); ok {
			r.useStorage = false
		} else {
			r.useFragment = false
		}
	case in.KeyField.Generic:
		r.armed = true
	}
	return r
}

func (r *Resolution) othersMatchStorage(last string) bool {
	for _, name := range r.fragment.Names() {
		if name == last {
			continue
		}
		if !sameValue(r.fragment.Lookup(name), r.stored(name)) {
			return false
		}
	}
	return true
}

// stored reads a record entry; d-<name> resolves against the shadow entries
// when the name belongs to a tracked field.
func (r *Resolution) stored(name string) Value {
	if v := r.record.Get(name); !v.IsAbsent() {
		return v
	}
	if field, ok := strings.CutPrefix(name, DisabledPrefix); ok {
		if v, tracked := r.shadows[field]; tracked {
			return v
		}
	}
	return Absent()
}

func sameValue(a, b Value) bool {
	if a.IsAbsent() || b.IsAbsent() {
		return a.IsAbsent() && b.IsAbsent()
	}
	return a.Text() == b.Text()
}

// Lookup resolves the value for name: fragment first, then storage, else
// Absent. With a generic key field still armed the first lookup that finds
// anything pins the source for the rest of the pass.
func (r *Resolution) Lookup(name string) Value {
	trace := FieldTrace{Field: name}

	if r.armed {
		if _, ok := r.fragment.Component(name); ok {
			r.pin(SourceFragment)
			trace.Pinned = true
		} else if r.record.Has(name) {
			r.pin(SourceStorage)
			trace.Pinned = true
		}
	}

	value := Absent()
	if r.useFragment {
		v := r.fragment.Lookup(name)
		trace.Layers = append(trace.Layers, Provenance{Source: SourceFragment, Value: v.Any(), Found: !v.IsAbsent()})
		if !v.IsAbsent() {
			value = v
			trace.Source = SourceFragment
		}
	}
	if value.IsAbsent() && r.useStorage {
		v := r.record.Get(name)
		trace.Layers = append(trace.Layers, Provenance{Source: SourceStorage, Value: v.Any(), Found: !v.IsAbsent()})
		if !v.IsAbsent() {
			value = v
			trace.Source = SourceStorage
		}
	}
	trace.Found = !value.IsAbsent()
	trace.Value = value.Any()
	r.traces = append(r.traces, trace)
	return value
}

// Disabled resolves the disabled-state shadow of a field without pinning.
func (r *Resolution) Disabled(name string) Value {
	if r.useFragment {
		if v := r.fragment.Lookup(DisabledPrefix + name); !v.IsAbsent() {
			return v
		}
	}
	if r.useStorage {
		return r.shadows[name]
	}
	return Absent()
}

func (r *Resolution) pin(source Source) {
	r.armed = false
	r.decision = DecisionKeyField
	if source == SourceFragment {
		r.useStorage = false
	} else {
		r.useFragment = false
	}
}

// Source reports the authoritative source of the pass as settled so far.
func (r *Resolution) Source() Source {
	switch {
	case r.useFragment && !r.fragment.Empty():
		return SourceFragment
	case r.useStorage:
		return SourceStorage
	default:
		return SourceNone
	}
}

// Decision reports the rule that settled the pass.
func (r *Resolution) Decision() Decision { return r.decision }

// Traces returns per-field provenance in lookup order.
func (r *Resolution) Traces() []FieldTrace {
	out := make([]FieldTrace, len(r.traces))
	copy(out, r.traces)
	return out
}
