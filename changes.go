package formstate

import "slices"

// FallbackTimestamp is reported as the restoration time when something was
// restored but the record carried no timestamp.
const FallbackTimestamp int64 = 1

// Restoration is the payload of the restored notification.
type Restoration struct {
	Changed   bool
	Timestamp int64
}

func checkedChanged(before, after bool) bool {
	return before != after
}

// textChanged covers text-like and single-select fields: empty to non-empty
// and one non-empty value to another both count, equal values do not.
func textChanged(before, after string) bool {
	return before != after
}

// selectionChanged compares selections as sets.
func selectionChanged(before, after []string) bool {
	a := slices.Clone(before)
	b := slices.Clone(after)
	slices.Sort(a)
	slices.Sort(b)
	return !slices.Equal(slices.Compact(a), slices.Compact(b))
}

// changeSet accumulates per-field change flags during one load pass.
type changeSet struct {
	fields  []Field
	changed map[string]bool
}

func newChangeSet() *changeSet {
	return &changeSet{changed: map[string]bool{}}
}

func (c *changeSet) mark(f Field) {
	key := f.ID
	if key == "" {
		key = f.Name + "\x00" + f.Option
	}
	if c.changed[key] {
		return
	}
	c.changed[key] = true
	c.fields = append(c.fields, f)
}

func (c *changeSet) any() bool { return len(c.fields) > 0 }

// Fields returns the modified fields in the order they were applied.
func (c *changeSet) Fields() []Field { return slices.Clone(c.fields) }

// restoration builds the notification payload from the record timestamp.
func (c *changeSet) restoration(record Record) Restoration {
	if !c.any() {
		return Restoration{}
	}
	ts, ok := record.Timestamp()
	if !ok || ts == 0 {
		ts = FallbackTimestamp
	}
	return Restoration{Changed: true, Timestamp: ts}
}
