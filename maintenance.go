package formstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formstate/pkg/storage"
)

// ErrEmptyPrefix is returned by ClearByPrefix for an empty prefix, which would
// otherwise clear the whole store.
var ErrEmptyPrefix = errors.New("formstate: prefix must not be empty")

// ClearByPrefix removes every key of store starting with prefix and returns
// the removed keys in store order. It needs no form, e.g. on logout.
func ClearByPrefix(ctx context.Context, store storage.Store, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	if store == nil {
		return nil, errors.New("formstate: store is required")
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("formstate: list keys: %w", err)
	}

	var removed []string
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := store.RemoveItem(ctx, key); err != nil {
			return removed, fmt.Errorf("formstate: remove %q: %w", key, err)
		}
		removed = append(removed, key)
	}
	return removed, nil
}

// RemoveKeysFromRecord deletes sub-keys from the JSON object stored under
// recordKey and writes it back. A missing, unparseable or non-object record
// is left alone. Other entries keep their encoded form.
func RemoveKeysFromRecord(ctx context.Context, store storage.Store, recordKey string, keys ...string) error {
	if store == nil {
		return errors.New("formstate: store is required")
	}
	raw, ok, err := store.GetItem(ctx, recordKey)
	if err != nil {
		return fmt.Errorf("formstate: read %q: %w", recordKey, err)
	}
	if !ok || len(keys) == 0 {
		return nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil || entries == nil {
		return nil
	}
	removed := false
	for _, key := range keys {
		if _, exists := entries[key]; exists {
			delete(entries, key)
			removed = true
		}
	}
	if !removed {
		return nil
	}

	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("formstate: encode %q: %w", recordKey, err)
	}
	if err := store.SetItem(ctx, recordKey, string(encoded)); err != nil {
		return fmt.Errorf("formstate: write %q: %w", recordKey, err)
	}
	return nil
}
