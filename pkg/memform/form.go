// Package memform is an in-memory formstate.FieldProvider. It models the
// controls of one form closely enough to drive the engine in tests, examples
// and the CLI without a browser.
package memform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	formstate "github.com/goliatone/go-formstate"
)

// ErrUnknownField is returned for a field the form does not hold.
var ErrUnknownField = errors.New("memform: unknown field")

// Control is the live state of one form control.
type Control struct {
	ID     string
	Name   string
	Kind   formstate.Kind
	Option string
	// Value is the text of text-like controls and single selects.
	Value          string
	Checked        bool
	DefaultChecked bool
	// Options lists the choices of a select. Empty means anything goes.
	Options       []string
	Selected      []string
	Disabled      bool
	ReadOnly      bool
	Excluded      bool
	TrackDisabled bool
}

func (c Control) field() formstate.Field {
	return formstate.Field{
		ID:            c.ID,
		Name:          c.Name,
		Kind:          c.Kind,
		Option:        c.Option,
		ReadOnly:      c.ReadOnly,
		Excluded:      c.Excluded,
		TrackDisabled: c.TrackDisabled,
	}
}

func (c Control) clone() Control {
	c.Options = slices.Clone(c.Options)
	c.Selected = slices.Clone(c.Selected)
	return c
}

// Form holds controls in document order.
type Form struct {
	mu       sync.Mutex
	controls []*Control
	next     int
	changes  []string

	// OnChange, when set, runs for every change notification after the form
	// recorded it. It is called without the form lock held.
	OnChange func(ctx context.Context, f formstate.Field)
}

// New builds a form. Controls without an ID get one; a checked control
// without DefaultChecked keeps its checked state as the markup default.
func New(controls ...Control) *Form {
	form := &Form{}
	for _, c := range controls {
		form.Add(c)
	}
	return form
}

// Add appends a control and returns its ID.
func (f *Form) Add(c Control) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	if c.ID == "" {
		c.ID = "f" + strconv.Itoa(f.next)
	}
	if c.Checked && !c.DefaultChecked {
		c.DefaultChecked = true
	}
	c = c.clone()
	f.controls = append(f.controls, &c)
	return c.ID
}

func (f *Form) ListFields(context.Context) ([]formstate.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]formstate.Field, 0, len(f.controls))
	for _, c := range f.controls {
		out = append(out, c.field())
	}
	return out, nil
}

func (f *Form) Value(_ context.Context, field formstate.Field) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

func (f *Form) SetValue(_ context.Context, field formstate.Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return err
	}
	if c.Kind == formstate.KindSelect && len(c.Options) > 0 && !slices.Contains(c.Options, value) {
		return fmt.Errorf("memform: %q has no option %q", c.Name, value)
	}
	c.Value = value
	return nil
}

func (f *Form) Checked(_ context.Context, field formstate.Field) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return false, err
	}
	return c.Checked, nil
}

func (f *Form) DefaultChecked(_ context.Context, field formstate.Field) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return false, err
	}
	return c.DefaultChecked, nil
}

// SetChecked checks or unchecks a control. Checking a radio unchecks the
// other members of its group.
func (f *Form) SetChecked(_ context.Context, field formstate.Field, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return err
	}
	if checked && c.Kind == formstate.KindRadio {
		for _, other := range f.controls {
			if other != c && other.Kind == formstate.KindRadio && other.Name == c.Name {
				other.Checked = false
			}
		}
	}
	c.Checked = checked
	return nil
}

func (f *Form) Selected(_ context.Context, field formstate.Field) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.Selected), nil
}

// SetSelected replaces the selection. Values that are not options of the
// control are ignored.
func (f *Form) SetSelected(_ context.Context, field formstate.Field, values []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return err
	}
	selected := make([]string, 0, len(values))
	for _, v := range values {
		if len(c.Options) > 0 && !slices.Contains(c.Options, v) {
			continue
		}
		if !slices.Contains(selected, v) {
			selected = append(selected, v)
		}
	}
	// keep option order, the way a select reports its selection
	if len(c.Options) > 0 {
		slices.SortStableFunc(selected, func(a, b string) int {
			return slices.Index(c.Options, a) - slices.Index(c.Options, b)
		})
	}
	c.Selected = selected
	return nil
}

func (f *Form) Disabled(_ context.Context, field formstate.Field) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return false, err
	}
	return c.Disabled, nil
}

func (f *Form) SetDisabled(_ context.Context, field formstate.Field, disabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(field)
	if err != nil {
		return err
	}
	c.Disabled = disabled
	return nil
}

// NotifyChange records the change and forwards it to OnChange.
func (f *Form) NotifyChange(ctx context.Context, field formstate.Field) error {
	f.mu.Lock()
	f.changes = append(f.changes, field.Name)
	hook := f.OnChange
	f.mu.Unlock()
	if hook != nil {
		hook(ctx, field)
	}
	return nil
}

// Changes returns the names passed to NotifyChange so far.
func (f *Form) Changes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.changes)
}

func (f *Form) lookup(field formstate.Field) (*Control, error) {
	for _, c := range f.controls {
		if field.ID != "" && c.ID == field.ID {
			return c, nil
		}
	}
	if field.ID == "" {
		for _, c := range f.controls {
			if c.Name == field.Name && c.Option == field.Option {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, field.Name)
}

var (
	_ formstate.FieldProvider  = (*Form)(nil)
	_ formstate.ChangeNotifier = (*Form)(nil)
)
