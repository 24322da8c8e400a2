package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsAndCopies(t *testing.T) {
	fields := []string{" qty ", "", "region"}
	evt := Event{
		Verb:       " form.restored ",
		ActorID:    " actor ",
		ObjectType: " form ",
		ObjectID:   " checkout ",
		Channel:    " forms ",
		Area:       " session ",
		Source:     " fragment ",
		Fields:     fields,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "form.restored" || got.ObjectType != "form" || got.ObjectID != "checkout" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.Channel != "forms" || got.Area != "session" || got.Source != "fragment" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	if len(got.Fields) != 2 || got.Fields[0] != "qty" || got.Fields[1] != "region" {
		t.Fatalf("expected blank names dropped, got %v", got.Fields)
	}
	got.Fields[1] = "changed"
	if fields[2] != "region" {
		t.Fatalf("expected original fields untouched: %v", fields)
	}
	if got.Keys != nil {
		t.Fatalf("expected nil keys, got %v", got.Keys)
	}
}

func TestHooksNotifyDropsInvalidEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: VerbFormReset, ObjectType: ObjectForm}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nilContext(), Event{Verb: VerbFormReset, ObjectType: ObjectForm, ObjectID: "checkout"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := BuildFormResetEvent(FormEventInput{FormKey: "checkout"})

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	if NewEmitter(Hooks{nil}, Config{Enabled: true}).Enabled() {
		t.Fatalf("expected emitter without hooks to be disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, ActorID: " ops ", TenantID: "t1"})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	got, ok := capture.Last()
	if !ok {
		t.Fatalf("expected one event captured")
	}
	if got.Channel != DefaultChannel || got.ActorID != "ops" || got.TenantID != "t1" {
		t.Fatalf("expected defaults applied, got %+v", got)
	}
}

func TestEmitterKeepsExplicitValues(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default", ActorID: "ops"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	event := BuildFormRestoredEvent(FormEventInput{FormKey: "checkout", OccurredAt: at})
	event.Channel = "custom"
	event.ActorID = "alice"
	if err := emitter.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	got := capture.ByVerb(VerbFormRestored)
	if len(got) != 1 {
		t.Fatalf("expected one restore event, got %d", len(got))
	}
	if got[0].Channel != "custom" || got[0].ActorID != "alice" || !got[0].OccurredAt.Equal(at) {
		t.Fatalf("expected explicit values kept, got %+v", got[0])
	}
	if len(capture.ByVerb(VerbFormReset)) != 0 {
		t.Fatalf("expected no reset events")
	}
}

// nilContext exercises the nil-context fallback without tripping vet.
func nilContext() context.Context { return nil }
