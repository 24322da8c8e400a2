package memform_test

import (
	"context"
	"errors"
	"testing"

	formstate "github.com/goliatone/go-formstate"
	"github.com/goliatone/go-formstate/pkg/memform"
	"github.com/google/go-cmp/cmp"
)

func TestRadioCheckUnchecksSiblings(t *testing.T) {
	ctx := context.Background()
	form := memform.New(
		memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "s", Checked: true},
		memform.Control{Name: "size", Kind: formstate.KindRadio, Option: "l"},
	)
	fields, _ := form.ListFields(ctx)
	if err := form.SetChecked(ctx, fields[1], true); err != nil {
		t.Fatalf("set checked: %v", err)
	}
	small, _ := form.Checked(ctx, fields[0])
	large, _ := form.Checked(ctx, fields[1])
	if small || !large {
		t.Fatalf("expected only l checked, got s=%v l=%v", small, large)
	}
	if byDefault, _ := form.DefaultChecked(ctx, fields[0]); !byDefault {
		t.Fatalf("expected initial checked state to be the default")
	}
}

func TestSetSelectedFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	form := memform.New(memform.Control{
		Name:    "tags",
		Kind:    formstate.KindMultiSelect,
		Options: []string{"a", "b", "c"},
	})
	fields, _ := form.ListFields(ctx)
	if err := form.SetSelected(ctx, fields[0], []string{"c", "x", "a", "c"}); err != nil {
		t.Fatalf("set selected: %v", err)
	}
	got, _ := form.Selected(ctx, fields[0])
	if diff := cmp.Diff([]string{"a", "c"}, got); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
}

func TestIDsAreAssignedAndUnknownFieldsFail(t *testing.T) {
	ctx := context.Background()
	form := memform.New(memform.Control{Name: "qty"}, memform.Control{ID: "custom", Name: "note"})
	fields, _ := form.ListFields(ctx)
	if fields[0].ID == "" || fields[1].ID != "custom" {
		t.Fatalf("unexpected ids %+v", fields)
	}
	_, err := form.Value(ctx, formstate.Field{ID: "nope", Name: "nope"})
	if !errors.Is(err, memform.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestNotifyChangeForwardsToHook(t *testing.T) {
	ctx := context.Background()
	form := memform.New(memform.Control{Name: "qty"})
	var seen []string
	form.OnChange = func(_ context.Context, f formstate.Field) { seen = append(seen, f.Name) }

	fields, _ := form.ListFields(ctx)
	form.NotifyChange(ctx, fields[0])
	if diff := cmp.Diff([]string{"qty"}, seen); diff != "" {
		t.Fatalf("hook mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"qty"}, form.Changes()); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectSingleOptionValidation(t *testing.T) {
	ctx := context.Background()
	form := memform.New(memform.Control{Name: "country", Kind: formstate.KindSelect, Options: []string{"br", "pt"}, Value: "br"})
	fields, _ := form.ListFields(ctx)
	if err := form.SetValue(ctx, fields[0], "xx"); err == nil {
		t.Fatalf("expected unknown option to be rejected")
	}
	if err := form.SetValue(ctx, fields[0], "pt"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if c, _ := form.Get("country"); c.Value != "pt" {
		t.Fatalf("expected pt, got %q", c.Value)
	}
}
