package formstate

import (
	"context"
	"fmt"
	"strings"
)

// radioGroups records, per radio name, whether some member is checked.
type radioGroups map[string]bool

func scanRadioGroups(ctx context.Context, provider FieldProvider, fields []Field) (radioGroups, error) {
	groups := radioGroups{}
	for _, f := range fields {
		if f.Kind != KindRadio {
			continue
		}
		checked, err := provider.Checked(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("formstate: read radio %q: %w", f.Name, err)
		}
		if checked {
			groups[f.Name] = true
		} else if _, seen := groups[f.Name]; !seen {
			groups[f.Name] = false
		}
	}
	return groups, nil
}

// encodeField returns the storable value of f. contribute is false when the
// field must leave its name alone (an unchecked radio whose group has another
// checked member). An Absent value with contribute set clears the name.
func encodeField(ctx context.Context, provider FieldProvider, f Field, groups radioGroups) (value Value, contribute bool, err error) {
	switch f.Kind {
	case KindCheckbox:
		checked, err := provider.Checked(ctx, f)
		if err != nil {
			return Absent(), false, err
		}
		byDefault, err := provider.DefaultChecked(ctx, f)
		if err != nil {
			return Absent(), false, err
		}
		switch {
		case checked && !byDefault:
			return Number(1), true, nil
		case !checked && byDefault:
			return Number(0), true, nil
		default:
			return Absent(), true, nil
		}

	case KindRadio:
		checked, err := provider.Checked(ctx, f)
		if err != nil {
			return Absent(), false, err
		}
		if checked {
			return String(f.Option), true, nil
		}
		if groups[f.Name] {
			return Absent(), false, nil
		}
		return Absent(), true, nil

	case KindMultiSelect:
		selected, err := provider.Selected(ctx, f)
		if err != nil {
			return Absent(), false, err
		}
		return Strings(selected), true, nil

	default:
		text, err := provider.Value(ctx, f)
		if err != nil {
			return Absent(), false, err
		}
		return String(text), true, nil
	}
}

// applyField assigns a resolved, non-absent value to f and reports whether the
// live state changed.
func applyField(ctx context.Context, provider FieldProvider, f Field, v Value) (bool, error) {
	if v.IsAbsent() {
		return false, nil
	}

	switch f.Kind {
	case KindCheckbox:
		before, err := provider.Checked(ctx, f)
		if err != nil {
			return false, err
		}
		after := v.Truthy()
		if err := provider.SetChecked(ctx, f, after); err != nil {
			return false, err
		}
		return checkedChanged(before, after), nil

	case KindRadio:
		text := v.Text()
		if text == "" || text != f.Option {
			return false, nil
		}
		before, err := provider.Checked(ctx, f)
		if err != nil {
			return false, err
		}
		if err := provider.SetChecked(ctx, f, true); err != nil {
			return false, err
		}
		return checkedChanged(before, true), nil

	case KindMultiSelect:
		wanted, err := decodeSelection(v)
		if err != nil {
			return false, err
		}
		before, err := provider.Selected(ctx, f)
		if err != nil {
			return false, err
		}
		// clear first, then select the listed options
		if err := provider.SetSelected(ctx, f, nil); err != nil {
			return false, err
		}
		if len(wanted) > 0 {
			if err := provider.SetSelected(ctx, f, wanted); err != nil {
				return false, err
			}
		}
		return selectionChanged(before, wanted), nil

	default:
		before, err := provider.Value(ctx, f)
		if err != nil {
			return false, err
		}
		after := v.Text()
		if before == after {
			return false, nil
		}
		if err := provider.SetValue(ctx, f, after); err != nil {
			return false, err
		}
		return textChanged(before, after), nil
	}
}

// decodeSelection turns a stored multi-select value into option values. Text
// is parsed as a JSON array only when it starts with '['; any other scalar
// selects that single option.
func decodeSelection(v Value) ([]string, error) {
	if values, ok := v.StringsValue(); ok {
		return values, nil
	}
	text := v.Text()
	if strings.HasPrefix(text, "[") {
		values, err := decodeStringArray(text)
		if err != nil {
			return nil, fmt.Errorf("formstate: malformed selection %q: %w", text, err)
		}
		return values, nil
	}
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
