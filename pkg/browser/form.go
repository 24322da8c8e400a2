package browser

import (
	"context"
	"fmt"

	formstate "github.com/goliatone/go-formstate"
)

const (
	// IDAttribute holds the handle assigned to each control on enumeration.
	IDAttribute = "data-formstate-id"
	// ExcludeClass marks a control that is never saved or restored.
	ExcludeClass = "no-save"
	// TrackDisabledClass persists the control's disabled state.
	TrackDisabledClass = "save-disabled-state"
)

// Form is a FieldProvider over the named controls of one form element.
type Form struct {
	run      Runner
	selector string
}

// NewForm binds the form matched by selector. An empty selector uses the
// first form on the page.
func NewForm(r Runner, selector string) *Form {
	if selector == "" {
		selector = "form"
	}
	return &Form{run: r, selector: selector}
}

type controlInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Option        string `json:"option"`
	ReadOnly      bool   `json:"readOnly"`
	Excluded      bool   `json:"excluded"`
	TrackDisabled bool   `json:"trackDisabled"`
}

const jsListFields = `(selector, attr, exclude, track) => {
	const form = document.querySelector(selector);
	if (!form) throw new Error("form not found: " + selector);
	window.__formstateSeq = window.__formstateSeq || 0;
	const out = [];
	for (const el of form.querySelectorAll("input[name], select[name], textarea[name]")) {
		let id = el.getAttribute(attr);
		if (!id) {
			id = "fs-" + (++window.__formstateSeq);
			el.setAttribute(attr, id);
		}
		out.push({
			id: id,
			name: el.name,
			type: el.tagName === "TEXTAREA" ? "text" : el.type,
			option: el.type === "radio" ? el.value : "",
			readOnly: !!el.readOnly,
			excluded: el.classList.contains(exclude),
			trackDisabled: el.classList.contains(track),
		});
	}
	return out;
}`

// ListFields assigns IDAttribute to controls that lack one and returns them
// in document order.
func (f *Form) ListFields(ctx context.Context) ([]formstate.Field, error) {
	var controls []controlInfo
	if err := call(ctx, f.run, &controls, jsListFields, f.selector, IDAttribute, ExcludeClass, TrackDisabledClass); err != nil {
		return nil, fmt.Errorf("browser: list fields: %w", err)
	}
	fields := make([]formstate.Field, 0, len(controls))
	for _, c := range controls {
		fields = append(fields, formstate.Field{
			ID:            c.ID,
			Name:          c.Name,
			Kind:          formstate.ParseKind(c.Type),
			Option:        c.Option,
			ReadOnly:      c.ReadOnly,
			Excluded:      c.Excluded,
			TrackDisabled: c.TrackDisabled,
		})
	}
	return fields, nil
}

// Every control script receives the attribute and the handle first.
const lookup = `
	const el = document.querySelector("[" + attr + "=\"" + CSS.escape(id) + "\"]");
	if (!el) throw new Error("field not found: " + id);
`

const (
	jsValue          = `(attr, id) => {` + lookup + `return el.value; }`
	jsSetValue       = `(attr, id, value) => {` + lookup + `el.value = value; return true; }`
	jsChecked        = `(attr, id) => {` + lookup + `return !!el.checked; }`
	jsDefaultChecked = `(attr, id) => {` + lookup + `return !!el.defaultChecked; }`
	jsSetChecked     = `(attr, id, checked) => {` + lookup + `el.checked = checked; return true; }`
	jsSelected       = `(attr, id) => {` + lookup + `return Array.from(el.selectedOptions || []).map(o => o.value); }`
	jsSetSelected    = `(attr, id, values) => {` + lookup + `for (const o of el.options) o.selected = values.includes(o.value); return true; }`
	jsDisabled       = `(attr, id) => {` + lookup + `return !!el.disabled; }`
	jsSetDisabled    = `(attr, id, disabled) => {` + lookup + `el.disabled = disabled; return true; }`
	jsNotifyChange   = `(attr, id) => {` + lookup + `el.dispatchEvent(new Event("change", { bubbles: true })); return true; }`
)

func (f *Form) control(ctx context.Context, op string, out any, js string, field formstate.Field, args ...any) error {
	all := append([]any{IDAttribute, field.ID}, args...)
	if err := call(ctx, f.run, out, js, all...); err != nil {
		return fmt.Errorf("browser: %s %q: %w", op, field.Name, err)
	}
	return nil
}

func (f *Form) Value(ctx context.Context, field formstate.Field) (string, error) {
	var v string
	err := f.control(ctx, "value", &v, jsValue, field)
	return v, err
}

func (f *Form) SetValue(ctx context.Context, field formstate.Field, value string) error {
	return f.control(ctx, "set value", nil, jsSetValue, field, value)
}

func (f *Form) Checked(ctx context.Context, field formstate.Field) (bool, error) {
	var v bool
	err := f.control(ctx, "checked", &v, jsChecked, field)
	return v, err
}

func (f *Form) DefaultChecked(ctx context.Context, field formstate.Field) (bool, error) {
	var v bool
	err := f.control(ctx, "default checked", &v, jsDefaultChecked, field)
	return v, err
}

func (f *Form) SetChecked(ctx context.Context, field formstate.Field, checked bool) error {
	return f.control(ctx, "set checked", nil, jsSetChecked, field, checked)
}

func (f *Form) Selected(ctx context.Context, field formstate.Field) ([]string, error) {
	var v []string
	err := f.control(ctx, "selected", &v, jsSelected, field)
	return v, err
}

func (f *Form) SetSelected(ctx context.Context, field formstate.Field, values []string) error {
	if values == nil {
		values = []string{}
	}
	return f.control(ctx, "set selected", nil, jsSetSelected, field, values)
}

func (f *Form) Disabled(ctx context.Context, field formstate.Field) (bool, error) {
	var v bool
	err := f.control(ctx, "disabled", &v, jsDisabled, field)
	return v, err
}

func (f *Form) SetDisabled(ctx context.Context, field formstate.Field, disabled bool) error {
	return f.control(ctx, "set disabled", nil, jsSetDisabled, field, disabled)
}

// NotifyChange dispatches a bubbling change event on the control.
func (f *Form) NotifyChange(ctx context.Context, field formstate.Field) error {
	return f.control(ctx, "notify change", nil, jsNotifyChange, field)
}

const jsFocused = `() => {
	const el = document.activeElement;
	return el && el.name ? el.name : "";
}`

// Focused returns the name of the focused control, or "" when none is.
func (f *Form) Focused(ctx context.Context) (string, error) {
	var name string
	if err := call(ctx, f.run, &name, jsFocused); err != nil {
		return "", fmt.Errorf("browser: focused: %w", err)
	}
	return name, nil
}

var (
	_ formstate.FieldProvider  = (*Form)(nil)
	_ formstate.ChangeNotifier = (*Form)(nil)
)
