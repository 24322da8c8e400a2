// Package usersink forwards form state activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-formstate/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Data keys written to ActivityRecord.Data.
const (
	DataArea     = "area"
	DataSource   = "source"
	DataDecision = "decision"
	DataStoredAt = "stored_at"
	DataFields   = "fields"
	DataKeys     = "keys"
)

// Hook adapts activity events to a go-users ActivitySink. Identifiers that
// are not UUIDs map to uuid.Nil.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify converts the event and logs it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record maps a normalized event to an ActivityRecord. StoredAt is written
// as Unix milliseconds, the unit of the record timestamp.
func Record(event activity.Event) usertypes.ActivityRecord {
	data := map[string]any{}
	put := func(key, value string) {
		if value != "" {
			data[key] = value
		}
	}
	put(DataArea, event.Area)
	put(DataSource, event.Source)
	put(DataDecision, event.Decision)
	if !event.StoredAt.IsZero() {
		data[DataStoredAt] = event.StoredAt.UnixMilli()
	}
	if len(event.Fields) > 0 {
		data[DataFields] = append([]string(nil), event.Fields...)
	}
	if len(event.Keys) > 0 {
		data[DataKeys] = append([]string(nil), event.Keys...)
	}
	if len(data) == 0 {
		data = nil
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
