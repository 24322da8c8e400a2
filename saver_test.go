package formstate_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	formstate "github.com/goliatone/go-formstate"
	"github.com/goliatone/go-formstate/pkg/memform"
	"github.com/goliatone/go-formstate/pkg/storage"
	"github.com/google/go-cmp/cmp"
)

var fixedNow = time.UnixMilli(1700000000000)

// page is the shared browser state that survives a reload: both stores and
// the location.
type page struct {
	store    *storage.MemoryStore
	session  *storage.MemoryStore
	location *formstate.MemoryLocation
}

func newPage(hash string) *page {
	return &page{
		store:    storage.NewMemoryStore(),
		session:  storage.NewMemoryStore(),
		location: formstate.NewMemoryLocation(hash),
	}
}

func (p *page) open(t *testing.T, form formstate.FieldProvider, extra ...formstate.Option) *formstate.Saver {
	t.Helper()
	opts := []formstate.Option{
		formstate.WithStore(p.store),
		formstate.WithSessionStore(p.session),
		formstate.WithLocation(p.location),
		formstate.WithClock(func() time.Time { return fixedNow }),
		formstate.WithDebounce(10 * time.Millisecond),
	}
	saver, err := formstate.New(form, append(opts, extra...)...)
	if err != nil {
		t.Fatalf("new saver: %v", err)
	}
	t.Cleanup(func() { saver.Close() })
	return saver
}

func (p *page) hash(t *testing.T) string {
	t.Helper()
	hash, err := p.location.Hash(context.Background())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

func (p *page) seed(t *testing.T, key, raw string) {
	t.Helper()
	if err := p.store.SetItem(context.Background(), key, raw); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func storedRecord(t *testing.T, store storage.Store, key string) map[string]any {
	t.Helper()
	raw, ok, err := store.GetItem(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	if !ok {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

type logCapture struct {
	mu     sync.Mutex
	events []formstate.LogEvent
}

func (c *logCapture) Log(event formstate.LogEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *logCapture) find(message string) (formstate.LogEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, event := range c.events {
		if event.Message == message {
			return event, true
		}
	}
	return formstate.LogEvent{}, false
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := formstate.New(nil); !errors.Is(err, formstate.ErrProviderRequired) {
		t.Fatalf("expected ErrProviderRequired, got %v", err)
	}
}

func TestNewRejectsBadExpression(t *testing.T) {
	form := memform.New()
	if _, err := formstate.New(form, formstate.WithFieldExpression("qty", "value +")); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestQtySaveAndReload(t *testing.T) {
	ctx := context.Background()
	p := newPage("")

	first := memform.New(memform.Control{Name: "qty", Value: "1"})
	saver := p.open(t, first)
	if _, err := saver.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.Type("qty", "5"); err != nil {
		t.Fatalf("type: %v", err)
	}
	fragment, err := saver.Save(ctx, formstate.Immediate())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if fragment != "#qty=5" || p.hash(t) != "#qty=5" {
		t.Fatalf("expected fragment #qty=5, got %q (location %q)", fragment, p.hash(t))
	}
	want := map[string]any{"qty": "5", "_fs_ts": float64(fixedNow.UnixMilli())}
	if diff := cmp.Diff(want, storedRecord(t, p.store, "form")); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}

	reloaded := memform.New(memform.Control{Name: "qty", Value: "1"})
	out, err := p.open(t, reloaded).Init(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c, _ := reloaded.Get("qty"); c.Value != "5" {
		t.Fatalf("expected qty 5 after reload, got %q", c.Value)
	}
	if !out.Changed || out.Timestamp != fixedNow.UnixMilli() {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if diff := cmp.Diff([]string{"qty"}, out.Modified); diff != "" {
		t.Fatalf("modified mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"qty"}, reloaded.Changes()); diff != "" {
		t.Fatalf("change notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultCheckedCheckboxStoresOnlyDeviation(t *testing.T) {
	ctx := context.Background()
	p := newPage("")
	form := memform.New(memform.Control{Name: "agree", Kind: formstate.KindCheckbox, Checked: true})
	saver := p.open(t, form)

	form.Check("agree", false)
	fragment, err := saver.Save(ctx, formstate.Immediate())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if fragment != "#agree=0" {
		t.Fatalf("expected #agree=0, got %q", fragment)
	}
	if got := storedRecord(t, p.store, "form")["agree"]; got != float64(0) {
		t.Fatalf("expected stored 0, got %#v", got)
	}

	form.Check("agree", true)
	fragment, err = saver.Save(ctx, formstate.Immediate())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if fragment != "" {
		t.Fatalf("expected empty fragment, got %q", fragment)
	}
	if _, ok := storedRecord(t, p.store, "form")["agree"]; ok {
		t.Fatalf("expected agree omitted once back at its default")
	}

	// a stored 0 unchecks the default-checked box on reload
	p.seed(t, "form", `{"agree":0,"_fs_ts":5}`)
	p.location.ReplaceHash(ctx, "")
	reloaded := memform.New(memform.Control{Name: "agree", Kind: formstate.KindCheckbox, Checked: true})
	out, err := p.open(t, reloaded).Init(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c, _ := reloaded.Get("agree"); c.Checked {
		t.Fatalf("expected agree unchecked after reload")
	}
	if !out.Changed || out.Timestamp != 5 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestMultiSelectRestoresExactSelection(t *testing.T) {
	ctx := context.Background()
	p := newPage("")
	p.seed(t, "form", `{"tags":"[\"a\",\"c\"]","_fs_ts":42}`)

	form := memform.New(memform.Control{
		Name:     "tags",
		Kind:     formstate.KindMultiSelect,
		Options:  []string{"a", "b", "c"},
		Selected: []string{"b"},
	})
	out, err := p.open(t, form).Init(ctx)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	c, _ := form.Get("tags")
	if diff := cmp.Diff([]string{"a", "c"}, c.Selected); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
	if !out.Changed || out.Timestamp != 42 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Source != formstate.SourceStorage {
		t.Fatalf("expected storage source, got %s", out.Source)
	}
	// loaded from storage, so the trailing save writes the fragment
	if got := p.hash(t); got != "#tags=%5B%22a%22%2C%22c%22%5D" {
		t.Fatalf("unexpected fragment %q", got)
	}
}

func TestRoundTripIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newPage("")
	build := func() *memform.Form {
		return memform.New(
			memform.Control{Name: "zero", Value: "x"},
			memform.Control{Name: "blank", Value: "x"},
			memform.Control{Name: "text", Value: ""},
			memform.Control{Name: "agree", Kind: formstate.KindCheckbox},
			memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "s", Checked: true},
			memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "l"},
			memform.Control{Name: "tags", Kind: formstate.KindMultiSelect, Options: []string{"a", "b", "c"}},
		)
	}

	form := build()
	saver := p.open(t, form)
	form.Type("zero", "0")
	form.Type("blank", "")
	form.Type("text", "hello world")
	form.Check("agree", true)
	form.Choose("size", "l")
	form.Select("tags", "a", "c")
	if _, err := saver.Save(ctx, formstate.Immediate()); err != nil {
		t.Fatalf("save: %v", err)
	}
	first, _, _ := p.store.GetItem(ctx, "form")

	reloaded := build()
	second := p.open(t, reloaded)
	if _, err := second.Init(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	for name, want := range map[string]string{"zero": "0", "blank": "", "text": "hello world"} {
		if c, _ := reloaded.Get(name); c.Value != want {
			t.Fatalf("%s: expected %q, got %q", name, want, c.Value)
		}
	}
	if c, _ := reloaded.Get("size"); c.Option != "l" || !c.Checked {
		t.Fatalf("expected size l checked, got %+v", c)
	}
	if c, _ := reloaded.Get("agree"); !c.Checked {
		t.Fatalf("expected agree checked")
	}

	if _, err := second.Save(ctx, formstate.Immediate()); err != nil {
		t.Fatalf("save again: %v", err)
	}
	again, _, _ := p.store.GetItem(ctx, "form")
	if first != again {
		t.Fatalf("expected identical persisted bytes:\nfirst: %s\nagain: %s", first, again)
	}
}

func TestRadioGroupWithNothingCheckedClearsStoredValue(t *testing.T) {
	ctx := context.Background()
	p := newPage("")
	p.seed(t, "form", `{"size":"l","name":"Ann","_fs_ts":1}`)

	form := memform.New(
		memform.Control{Name: "name", Value: "Ann"},
		memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "s"},
		memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "l"},
	)
	saver := p.open(t, form)
	if _, err := saver.Save(ctx, formstate.Immediate()); err != nil {
		t.Fatalf("save: %v", err)
	}
	record := storedRecord(t, p.store, "form")
	if _, ok := record["size"]; ok {
		t.Fatalf("expected size cleared, got %v", record)
	}
	if record["name"] != "Ann" {
		t.Fatalf("expected name kept, got %v", record)
	}
}

func TestRadioMembersAfterCheckedOneContributeNothing(t *testing.T) {
	ctx := context.Background()
	p := newPage("")

	form := memform.New(
		memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "s"},
		memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "m", Checked: true},
		memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "l"},
	)
	saver := p.open(t, form)
	if _, err := saver.Save(ctx, formstate.Immediate()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if record := storedRecord(t, p.store, "form"); record["size"] != "m" {
		t.Fatalf("expected size m, got %v", record)
	}
	if got := p.hash(t); got != "#size=m" {
		t.Fatalf("unexpected fragment %q", got)
	}
}

func TestUnchangedValuesDoNotRestore(t *testing.T) {
	ctx := context.Background()
	p := newPage("")
	p.seed(t, "form", `{"name":"Ann","_fs_ts":9}`)

	restored := 0
	form := memform.New(memform.Control{Name: "name", Value: "Ann"})
	out, err := p.open(t, form).Init(ctx, formstate.Listener{
		OnRestore: func(context.Context, formstate.Restoration) { restored++ },
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if out.Changed || out.Timestamp != 0 || restored != 0 {
		t.Fatalf("expected no restoration, got %+v (listener calls %d)", out, restored)
	}
}

func TestRefreshAndNavigationThroughSaver(t *testing.T) {
	ctx := context.Background()
	build := func() *memform.Form {
		return memform.New(
			memform.Control{Name: "qty", Value: "1"},
			memform.Control{Name: "name"},
		)
	}

	t.Run("refresh", func(t *testing.T) {
		p := newPage("#qty=3&name=Ann")
		p.seed(t, "form", `{"qty":"7","name":"Ann","_fs_ts":1}`)
		p.session.SetItem(ctx, formstate.UnloadFieldKey, "qty")

		form := build()
		out, err := p.open(t, form).Init(ctx)
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		if c, _ := form.Get("qty"); c.Value != "7" {
			t.Fatalf("expected stored qty after refresh, got %q", c.Value)
		}
		if out.Decision != formstate.DecisionRefresh || out.Source != formstate.SourceStorage {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if got := p.hash(t); got != "#qty=7&name=Ann" {
			t.Fatalf("expected fragment caught up with storage, got %q", got)
		}
	})

	t.Run("navigation", func(t *testing.T) {
		p := newPage("#qty=3&name=Bob")
		p.seed(t, "form", `{"qty":"7","name":"Ann","_fs_ts":1}`)
		p.session.SetItem(ctx, formstate.UnloadFieldKey, "qty")

		form := build()
		out, err := p.open(t, form).Init(ctx)
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		if c, _ := form.Get("qty"); c.Value != "3" {
			t.Fatalf("expected fragment qty after navigation, got %q", c.Value)
		}
		if out.Decision != formstate.DecisionNavigation || out.Source != formstate.SourceFragment {
			t.Fatalf("unexpected outcome %+v", out)
		}
		// loaded from the fragment, so the trailing save writes storage
		if got := storedRecord(t, p.store, "form"); got["qty"] != "3" || got["name"] != "Bob" {
			t.Fatalf("expected storage rewritten from fragment, got %#v", got)
		}
	})
}

func TestKeyFieldRegion(t *testing.T) {
	ctx := context.Background()
	build := func() *memform.Form {
		return memform.New(
			memform.Control{Name: "region"},
			memform.Control{Name: "qty"},
			memform.Control{Name: "note"},
		)
	}

	t.Run("in fragment", func(t *testing.T) {
		p := newPage("#region=us&qty=3")
		p.seed(t, "form", `{"region":"eu","note":"stored"}`)
		form := build()
		if _, err := p.open(t, form, formstate.WithKeyField("region")).Init(ctx); err != nil {
			t.Fatalf("init: %v", err)
		}
		if c, _ := form.Get("note"); c.Value != "" {
			t.Fatalf("expected storage-only note ignored, got %q", c.Value)
		}
		if c, _ := form.Get("region"); c.Value != "us" {
			t.Fatalf("expected fragment region, got %q", c.Value)
		}
	})

	t.Run("only in storage", func(t *testing.T) {
		p := newPage("#qty=3&note=hash")
		p.seed(t, "form", `{"region":"eu","qty":"5"}`)
		form := build()
		if _, err := p.open(t, form, formstate.WithKeyField("region")).Init(ctx); err != nil {
			t.Fatalf("init: %v", err)
		}
		if c, _ := form.Get("note"); c.Value != "" {
			t.Fatalf("expected fragment-only note ignored, got %q", c.Value)
		}
		if c, _ := form.Get("qty"); c.Value != "5" {
			t.Fatalf("expected stored qty, got %q", c.Value)
		}
	})
}

func TestInitTwiceFails(t *testing.T) {
	ctx := context.Background()
	saver := newPage("").open(t, memform.New())
	if _, err := saver.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := saver.Init(ctx); !errors.Is(err, formstate.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

type failingProvider struct {
	formstate.FieldProvider
	err error
}

func (f failingProvider) ListFields(context.Context) ([]formstate.Field, error) {
	return nil, f.err
}

func TestLoadReturnsProviderErrors(t *testing.T) {
	boom := errors.New("detached")
	saver := newPage("").open(t, failingProvider{FieldProvider: memform.New(), err: boom})
	if _, err := saver.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if saver.Loading() {
		t.Fatalf("expected loading flag cleared after failure")
	}
}

func TestMalformedRecordLoadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	p := newPage("")
	p.seed(t, "form", `{not json`)
	logs := &logCapture{}

	form := memform.New(memform.Control{Name: "qty", Value: "1"})
	out, err := p.open(t, form, formstate.WithLogger(logs)).Init(ctx)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if out.Changed {
		t.Fatalf("expected nothing restored from malformed record")
	}
	if event, ok := logs.find("malformed record ignored"); !ok || event.Level != formstate.LevelDebug {
		t.Fatalf("expected debug log for malformed record, got %+v", event)
	}
}

func TestMalformedSelectionSkipsOnlyThatField(t *testing.T) {
	ctx := context.Background()
	p := newPage("")
	p.seed(t, "form", `{"tags":"[bad","qty":"5","_fs_ts":3}`)
	logs := &logCapture{}

	form := memform.New(
		memform.Control{Name: "tags", Kind: formstate.KindMultiSelect, Options: []string{"a", "b", "c"}, Selected: []string{"b"}},
		memform.Control{Name: "qty", Value: "1"},
	)
	out, err := p.open(t, form, formstate.WithLogger(logs)).Init(ctx)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if c, _ := form.Get("qty"); c.Value != "5" {
		t.Fatalf("expected qty restored, got %q", c.Value)
	}
	if c, _ := form.Get("tags"); !cmp.Equal([]string{"b"}, c.Selected) {
		t.Fatalf("expected tags untouched, got %v", c.Selected)
	}
	if diff := cmp.Diff([]string{"qty"}, out.Modified); diff != "" {
		t.Fatalf("modified mismatch (-want +got):\n%s", diff)
	}
	event, ok := logs.find("apply failed")
	if !ok || event.Field != "tags" || event.Level != formstate.LevelWarn || event.Err == nil {
		t.Fatalf("expected warn log for tags, got %+v", event)
	}
}
