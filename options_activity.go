package formstate

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-formstate/pkg/activity"
)

type activityConfig struct {
	hooks      activity.Hooks
	config     activity.Config
	configured bool
	actorID    string
	userID     string
	tenantID   string
}

// WithActivityHooks attaches activity hooks that hear about restores and
// resets. Hooks are cloned and nil entries dropped. Emission is enabled unless
// WithActivityConfig says otherwise.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activity.hooks = normalized
	}
}

// WithActivityConfig overrides the emitter defaults (enabled flag, channel).
func WithActivityConfig(c activity.Config) Option {
	return func(cfg *config) {
		cfg.activity.config = c
		cfg.activity.configured = true
	}
}

// WithActivityIdentity stamps emitted events with who the form belongs to.
// Non-empty values override the identity in WithActivityConfig.
func WithActivityIdentity(actorID, userID, tenantID string) Option {
	return func(cfg *config) {
		cfg.activity.actorID = strings.TrimSpace(actorID)
		cfg.activity.userID = strings.TrimSpace(userID)
		cfg.activity.tenantID = strings.TrimSpace(tenantID)
	}
}

// ActivityHooks returns a cloned slice of the configured activity hooks. The
// returned slice can be safely mutated by the caller.
func (s *Saver) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return cloneActivityHooks(s.cfg.activity.hooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

func (a activityConfig) emitter() *activity.Emitter {
	c := a.config
	if !a.configured {
		c.Enabled = true
	}
	if a.actorID != "" {
		c.ActorID = a.actorID
	}
	if a.userID != "" {
		c.UserID = a.userID
	}
	if a.tenantID != "" {
		c.TenantID = a.tenantID
	}
	return activity.NewEmitter(a.hooks, c)
}

func (s *Saver) eventInput() activity.FormEventInput {
	return activity.FormEventInput{
		FormKey: s.cfg.storageKey,
		Area:    s.cfg.storageMode.String(),
	}
}

func (s *Saver) emitRestored(ctx context.Context, out Outcome) {
	if !s.emitter.Enabled() {
		return
	}
	input := s.eventInput()
	input.Source = out.Source.String()
	input.Decision = out.Decision.String()
	if out.Timestamp != 0 {
		input.StoredAt = time.UnixMilli(out.Timestamp)
	}
	input.Fields = out.Modified
	s.emit(ctx, activity.BuildFormRestoredEvent(input))
}

func (s *Saver) emitReset(ctx context.Context, keys []string) {
	if !s.emitter.Enabled() {
		return
	}
	input := s.eventInput()
	input.Keys = keys
	s.emit(ctx, activity.BuildFormResetEvent(input))
}

func (s *Saver) emit(ctx context.Context, event activity.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.cfg.logger.Log(LogEvent{
			Level:   LevelWarn,
			Message: "activity hook failed",
			Form:    s.cfg.storageKey,
			Err:     err,
		})
	}
}
