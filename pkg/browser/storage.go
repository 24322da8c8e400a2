package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-formstate/pkg/storage"
)

const (
	areaLocal   = "localStorage"
	areaSession = "sessionStorage"
)

// Storage is a storage.Store over one of the page's Web Storage areas.
type Storage struct {
	run  Runner
	area string
}

// LocalStorage returns the page's persistent store.
func LocalStorage(r Runner) *Storage {
	return &Storage{run: r, area: areaLocal}
}

// SessionStorage returns the page's session-scoped store.
func SessionStorage(r Runner) *Storage {
	return &Storage{run: r, area: areaSession}
}

const jsGetItem = `(area, key) => {
	const value = window[area].getItem(key);
	return value === null ? { ok: false } : { ok: true, value: value };
}`

const jsSetItem = `(area, key, value) => {
	try {
		window[area].setItem(key, value);
		return "";
	} catch (e) {
		return e && e.name === "QuotaExceededError" ? "quota" : String(e);
	}
}`

const jsRemoveItem = `(area, key) => { window[area].removeItem(key); return true; }`

const jsKeys = `(area) => {
	const store = window[area];
	const keys = [];
	for (let i = 0; i < store.length; i++) keys.push(store.key(i));
	return keys.sort();
}`

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var out struct {
		OK    bool   `json:"ok"`
		Value string `json:"value"`
	}
	if err := call(ctx, s.run, &out, jsGetItem, s.area, key); err != nil {
		return "", false, fmt.Errorf("browser: %s get %q: %w", s.area, key, err)
	}
	return out.Value, out.OK, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return storage.ErrEmptyKey
	}
	var failure string
	if err := call(ctx, s.run, &failure, jsSetItem, s.area, key, value); err != nil {
		return fmt.Errorf("browser: %s set %q: %w", s.area, key, err)
	}
	switch failure {
	case "":
		return nil
	case "quota":
		return storage.ErrQuotaExceeded
	default:
		return fmt.Errorf("browser: %s set %q: %w", s.area, key, errors.New(failure))
	}
}

func (s *Storage) RemoveItem(ctx context.Context, key string) error {
	if err := call(ctx, s.run, nil, jsRemoveItem, s.area, key); err != nil {
		return fmt.Errorf("browser: %s remove %q: %w", s.area, key, err)
	}
	return nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := call(ctx, s.run, &keys, jsKeys, s.area); err != nil {
		return nil, fmt.Errorf("browser: %s keys: %w", s.area, err)
	}
	return keys, nil
}

var _ storage.Store = (*Storage)(nil)
