package formstate

import "context"

// Kind is the control type of a field.
type Kind int

const (
	KindText Kind = iota
	KindCheckbox
	KindRadio
	KindSelect
	KindMultiSelect
	KindPassword
	KindFile
	KindHidden
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCheckbox:
		return "checkbox"
	case KindRadio:
		return "radio"
	case KindSelect:
		return "select"
	case KindMultiSelect:
		return "select-multiple"
	case KindPassword:
		return "password"
	case KindFile:
		return "file"
	case KindHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// ParseKind maps an HTML control type onto a Kind. Unknown input types are
// text-like.
func ParseKind(controlType string) Kind {
	switch controlType {
	case "checkbox":
		return KindCheckbox
	case "radio":
		return KindRadio
	case "select", "select-one":
		return KindSelect
	case "select-multiple":
		return KindMultiSelect
	case "password":
		return KindPassword
	case "file":
		return KindFile
	case "hidden":
		return KindHidden
	default:
		return KindText
	}
}

// Field describes one form control as enumerated by a FieldProvider.
type Field struct {
	// ID is the provider's handle for the control. It must be unique within
	// one ListFields result; radio members share Name but not ID.
	ID   string
	Name string
	Kind Kind
	// Option is the value attribute of a radio member.
	Option   string
	ReadOnly bool
	// Excluded marks a control that is never saved or restored.
	Excluded bool
	// TrackDisabled persists the control's disabled state next to its value.
	TrackDisabled bool
}

// FieldProvider exposes the live form to the engine. Implementations bind it
// to a concrete UI; pkg/memform provides an in-memory one.
type FieldProvider interface {
	ListFields(ctx context.Context) ([]Field, error)
	Value(ctx context.Context, f Field) (string, error)
	SetValue(ctx context.Context, f Field, value string) error
	Checked(ctx context.Context, f Field) (bool, error)
	// DefaultChecked reports the markup-declared checked state.
	DefaultChecked(ctx context.Context, f Field) (bool, error)
	SetChecked(ctx context.Context, f Field, checked bool) error
	Selected(ctx context.Context, f Field) ([]string, error)
	SetSelected(ctx context.Context, f Field, values []string) error
	Disabled(ctx context.Context, f Field) (bool, error)
	SetDisabled(ctx context.Context, f Field, disabled bool) error
}

// ChangeNotifier is implemented by providers that want to hear about every
// field a load pass modified.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, f Field) error
}

// servable reports whether f takes part in saving and loading.
func servable(f Field, storePasswords bool) bool {
	if f.Name == "" || f.Excluded || f.ReadOnly {
		return false
	}
	switch f.Kind {
	case KindFile, KindHidden:
		return false
	case KindPassword:
		return storePasswords
	default:
		return true
	}
}

func servedFields(fields []Field, storePasswords bool) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if servable(f, storePasswords) {
			out = append(out, f)
		}
	}
	return out
}
