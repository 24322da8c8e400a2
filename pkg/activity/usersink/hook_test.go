package usersink_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-formstate/pkg/activity"
	"github.com/goliatone/go-formstate/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsRestore(t *testing.T) {
	sink := &recordingSink{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()

	emitter := activity.NewEmitter(activity.Hooks{usersink.Hook{Sink: sink}}, activity.Config{
		Enabled:  true,
		ActorID:  actorID.String(),
		UserID:   "not-a-uuid",
		TenantID: tenantID.String(),
	})
	err := emitter.Emit(context.Background(), activity.BuildFormRestoredEvent(activity.FormEventInput{
		FormKey:    "checkout",
		Area:       "session",
		Source:     "fragment",
		Decision:   "fragment_only",
		StoredAt:   time.UnixMilli(1700000000000),
		Fields:     []string{"qty"},
		OccurredAt: now,
	}))
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID || record.UserID != uuid.Nil {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.Verb != activity.VerbFormRestored || record.ObjectType != activity.ObjectForm || record.ObjectID != "checkout" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != activity.DefaultChannel || record.OccurredAt != now {
		t.Fatalf("unexpected channel or time: %+v", record)
	}
	want := map[string]any{
		usersink.DataArea:     "session",
		usersink.DataSource:   "fragment",
		usersink.DataDecision: "fragment_only",
		usersink.DataStoredAt: int64(1700000000000),
		usersink.DataFields:   []string{"qty"},
	}
	if diff := cmp.Diff(want, record.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordMapsResetKeys(t *testing.T) {
	record := usersink.Record(activity.NormalizeEvent(activity.BuildFormResetEvent(activity.FormEventInput{
		FormKey: "form",
		Keys:    []string{"form", "formd-email"},
	})))
	want := map[string]any{usersink.DataKeys: []string{"form", "formd-email"}}
	if diff := cmp.Diff(want, record.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsInvalidEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{Verb: activity.VerbFormReset})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for incomplete event, got %d", len(sink.records))
	}
}

func TestRecordWithoutDataLeavesItNil(t *testing.T) {
	record := usersink.Record(activity.Event{Verb: activity.VerbFormReset, ObjectType: "form", ObjectID: "form"})
	if record.Data != nil {
		t.Fatalf("expected nil data, got %v", record.Data)
	}
}
