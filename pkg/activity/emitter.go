package activity

import (
	"context"
	"strings"
)

// DefaultChannel is used when Config.Channel is blank.
const DefaultChannel = "formstate"

// Config controls emission. Identity fields fill events that carry none.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	UserID   string
	TenantID string
}

// Emitter stamps events with channel and identity defaults and hands them to
// the hooks.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	defaults Event
}

// NewEmitter builds an emitter. It is disabled when cfg says so or when no
// non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	hooks = compactHooks(hooks)
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:   hooks,
		enabled: cfg.Enabled && len(hooks) > 0,
		defaults: Event{
			Channel:  channel,
			ActorID:  strings.TrimSpace(cfg.ActorID),
			UserID:   strings.TrimSpace(cfg.UserID),
			TenantID: strings.TrimSpace(cfg.TenantID),
		},
	}
}

// Enabled reports whether Emit will reach any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit fills blank channel and identity fields and notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	fill(&event.Channel, e.defaults.Channel)
	fill(&event.ActorID, e.defaults.ActorID)
	fill(&event.UserID, e.defaults.UserID)
	fill(&event.TenantID, e.defaults.TenantID)
	return e.hooks.Notify(ctx, event)
}

func fill(dst *string, fallback string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = fallback
	}
}

func compactHooks(hooks Hooks) Hooks {
	var out Hooks
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}
