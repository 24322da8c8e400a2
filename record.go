package formstate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/goliatone/go-formstate/internal/hydrate"
)

// TimestampKey is the reserved record key holding the save time in epoch
// milliseconds. It never names a field.
const TimestampKey = "_fs_ts"

// Record is the persisted mapping of field names to values for one form.
type Record struct {
	values    map[string]Value
	timestamp int64
	stamped   bool
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{values: map[string]Value{}}
}

// Get returns the stored value for name, or Absent.
func (r Record) Get(name string) Value {
	if r.values == nil {
		return Absent()
	}
	return r.values[name]
}

// Has reports whether name has a stored value.
func (r Record) Has(name string) bool {
	return !r.Get(name).IsAbsent()
}

// Set stores v under name. Setting Absent deletes the entry.
func (r *Record) Set(name string, v Value) {
	if name == "" || name == TimestampKey {
		return
	}
	if v.IsAbsent() {
		delete(r.values, name)
		return
	}
	if r.values == nil {
		r.values = map[string]Value{}
	}
	r.values[name] = v
}

// Delete removes name from the record.
func (r *Record) Delete(name string) {
	delete(r.values, name)
}

// Len returns the number of field entries (the timestamp is not counted).
func (r Record) Len() int { return len(r.values) }

// Names returns the field names in the record, sorted.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Timestamp returns the stored save time and whether one exists.
func (r Record) Timestamp() (int64, bool) {
	return r.timestamp, r.stamped
}

// SetTimestamp stamps the record with ms epoch milliseconds.
func (r *Record) SetTimestamp(ms int64) {
	r.timestamp = ms
	r.stamped = true
}

// Clone returns a detached copy of r.
func (r Record) Clone() Record {
	out := Record{timestamp: r.timestamp, stamped: r.stamped}
	if r.values != nil {
		out.values = make(map[string]Value, len(r.values))
		for name, value := range r.values {
			out.values[name] = value
		}
	}
	return out
}

// Map returns the record as plain Go values, including the timestamp key.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.values)+1)
	for name, value := range r.values {
		out[name] = value.Any()
	}
	if r.stamped {
		out[TimestampKey] = r.timestamp
	}
	return out
}

// MarshalJSON writes the flat JSON object kept in the store.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.values)+1)
	for name, value := range r.values {
		out[name] = value
	}
	if r.stamped {
		out[TimestampKey] = r.timestamp
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat JSON object. Entries that are not scalars or
// string arrays are dropped.
func (r *Record) UnmarshalJSON(data []byte) error {
	decoded, err := ParseRecord(string(data))
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}

// RecordFromMap builds a record from plain Go values, e.g. an evaluator result
// or a JSON payload decoded into map[string]any.
func RecordFromMap(payload map[string]any) (Record, error) {
	record := NewRecord()
	for key, raw := range payload {
		if key == TimestampKey {
			ms, ok := timestampFrom(raw)
			if ok {
				record.SetTimestamp(ms)
			}
			continue
		}
		value, err := ValueOf(raw)
		if err != nil {
			// nested objects and mixed arrays are not field values
			continue
		}
		record.Set(key, value)
	}
	return record, nil
}

func timestampFrom(raw any) (int64, bool) {
	switch typed := raw.(type) {
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0, false
		}
		return int64(typed), true
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case json.Number:
		if ms, err := typed.Int64(); err == nil {
			return ms, true
		}
		if f, err := typed.Float64(); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

var recordDecoder = hydrate.NewDecoder[Record](
	hydrate.WithUseNumber[Record](),
	hydrate.WithCustomDecoder[Record](func(_ hydrate.Context, payload map[string]any) (Record, error) {
		return RecordFromMap(payload)
	}),
)

// ParseRecord decodes the stored JSON text of a record. Callers that follow
// the load policy treat a non-nil error as an empty record.
func ParseRecord(raw string) (Record, error) {
	if raw == "" {
		return NewRecord(), fmt.Errorf("formstate: empty record")
	}
	record, err := recordDecoder.DecodeString(hydrate.Context{Source: "storage"}, raw)
	if err != nil {
		return NewRecord(), fmt.Errorf("formstate: malformed record: %w", err)
	}
	return record, nil
}
