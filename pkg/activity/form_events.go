package activity

import (
	"strings"
	"time"
)

const (
	VerbFormRestored = "form.restored"
	VerbFormReset    = "form.reset"
	VerbKeysCleared  = "form.keys.cleared"
)

// Object types carried by form events.
const (
	ObjectForm    = "form"
	ObjectStorage = "storage"
)

// FormEventInput is what the caller knows about a form state change. Channel
// and identity come from the Emitter.
type FormEventInput struct {
	// FormKey is the storage key, or the prefix for a clear.
	FormKey  string
	Area     string
	Source   string
	Decision string
	StoredAt time.Time
	Fields   []string
	Keys     []string
	// OccurredAt defaults to the time of emission.
	OccurredAt time.Time
}

// BuildFormRestoredEvent reports a load pass that changed at least one field.
func BuildFormRestoredEvent(input FormEventInput) Event {
	return buildFormEvent(VerbFormRestored, ObjectForm, input)
}

// BuildFormResetEvent reports an erased record.
func BuildFormResetEvent(input FormEventInput) Event {
	return buildFormEvent(VerbFormReset, ObjectForm, input)
}

// BuildKeysClearedEvent reports bulk removal of store entries by prefix.
func BuildKeysClearedEvent(input FormEventInput) Event {
	return buildFormEvent(VerbKeysCleared, ObjectStorage, input)
}

func buildFormEvent(verb, objectType string, input FormEventInput) Event {
	objectID := strings.TrimSpace(input.FormKey)
	if objectID == "" {
		objectID = objectType
	}
	return Event{
		Verb:       verb,
		ObjectType: objectType,
		ObjectID:   objectID,
		Area:       strings.TrimSpace(input.Area),
		Source:     strings.TrimSpace(input.Source),
		Decision:   strings.TrimSpace(input.Decision),
		StoredAt:   input.StoredAt,
		Fields:     cleanNames(input.Fields),
		Keys:       cleanNames(input.Keys),
		OccurredAt: input.OccurredAt,
	}
}
