package formstate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-formstate/pkg/storage"
)

// FieldDescriptor describes one stored field value.
type FieldDescriptor struct {
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind" yaml:"kind"`
	Value any    `json:"value" yaml:"value"`
}

// RecordDescription is a readable view of a stored record and its disabled
// shadow entries.
type RecordDescription struct {
	Key      string            `json:"key" yaml:"key"`
	SavedAt  *time.Time        `json:"saved_at,omitempty" yaml:"saved_at,omitempty"`
	Fields   []FieldDescriptor `json:"fields" yaml:"fields"`
	Disabled map[string]bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// DescribeRecord lists the entries of record sorted by name.
func DescribeRecord(key string, record Record) RecordDescription {
	desc := RecordDescription{Key: key, Fields: []FieldDescriptor{}}
	if ms, ok := record.Timestamp(); ok {
		at := time.UnixMilli(ms).UTC()
		desc.SavedAt = &at
	}
	for _, name := range record.Names() {
		value := record.Get(name)
		desc.Fields = append(desc.Fields, FieldDescriptor{
			Name:  name,
			Kind:  value.Kind().String(),
			Value: value.Any(),
		})
	}
	return desc
}

// DescribeStored reads the record under key together with its
// <key>d-<name> shadow entries. ok is false when no record exists.
func DescribeStored(ctx context.Context, store storage.Store, key string) (desc RecordDescription, ok bool, err error) {
	raw, found, err := store.GetItem(ctx, key)
	if err != nil {
		return RecordDescription{}, false, fmt.Errorf("formstate: read %s: %w", key, err)
	}
	if !found {
		return RecordDescription{}, false, nil
	}
	record, err := ParseRecord(raw)
	if err != nil {
		return RecordDescription{}, false, err
	}
	desc = DescribeRecord(key, record)

	keys, err := store.Keys(ctx)
	if err != nil {
		return RecordDescription{}, false, fmt.Errorf("formstate: list keys: %w", err)
	}
	sort.Strings(keys)
	prefix := key + DisabledPrefix
	for _, k := range keys {
		name, isShadow := strings.CutPrefix(k, prefix)
		if !isShadow || name == "" {
			continue
		}
		text, _, err := store.GetItem(ctx, k)
		if err != nil {
			return RecordDescription{}, false, fmt.Errorf("formstate: read %s: %w", k, err)
		}
		if desc.Disabled == nil {
			desc.Disabled = map[string]bool{}
		}
		desc.Disabled[name] = String(text).Positive()
	}
	return desc, true, nil
}
