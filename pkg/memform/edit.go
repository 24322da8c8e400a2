package memform

import (
	"fmt"
	"slices"

	formstate "github.com/goliatone/go-formstate"
)

// The helpers below act like a user editing the form. They address controls
// by name and do not send change notifications.

// Type sets the text of the named control.
func (f *Form) Type(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byName(name)
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	c.Value = value
	return nil
}

// Check toggles the named checkbox.
func (f *Form) Check(name string, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byName(name)
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	c.Checked = checked
	return nil
}

// Choose checks the radio member of group name whose option is option.
func (f *Form) Choose(name, option string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, c := range f.controls {
		if c.Kind != formstate.KindRadio || c.Name != name {
			continue
		}
		c.Checked = c.Option == option
		found = found || c.Checked
	}
	if !found {
		return fmt.Errorf("%w: %q=%q", ErrUnknownField, name, option)
	}
	return nil
}

// Select replaces the selection of the named multi-select.
func (f *Form) Select(name string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byName(name)
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	c.Selected = slices.Clone(values)
	return nil
}

// Disable sets the disabled state of the named control.
func (f *Form) Disable(name string, disabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byName(name)
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	c.Disabled = disabled
	return nil
}

// Get returns a copy of the named control. For a radio group it returns the
// checked member, or the first one when none is checked.
func (f *Form) Get(name string) (Control, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first *Control
	for _, c := range f.controls {
		if c.Name != name {
			continue
		}
		if first == nil {
			first = c
		}
		if c.Kind != formstate.KindRadio || c.Checked {
			return c.clone(), true
		}
	}
	if first == nil {
		return Control{}, false
	}
	return first.clone(), true
}

// Controls returns copies of every control in document order.
func (f *Form) Controls() []Control {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Control, len(f.controls))
	for i, c := range f.controls {
		out[i] = c.clone()
	}
	return out
}

func (f *Form) byName(name string) *Control {
	for _, c := range f.controls {
		if c.Name == name {
			return c
		}
	}
	return nil
}
