package clipboard

import (
	"context"
	"errors"
	"testing"
)

type failing struct{ calls int }

func (f *failing) WriteText(context.Context, string) error {
	f.calls++
	return errors.New("no display")
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	ctx := context.Background()
	if err := m.WriteText(ctx, "MKT"); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteText(ctx, "AYIAKQR"); err != nil {
		t.Fatal(err)
	}
	text, n := m.Text()
	if text != "AYIAKQR" || n != 2 {
		t.Errorf("got %q after %d writes", text, n)
	}
}

func TestFallback_UsesSecondaryOnFailure(t *testing.T) {
	primary := &failing{}
	mem := &Memory{}
	f := &Fallback{Primary: primary, Secondary: mem}

	if err := f.WriteText(context.Background(), "GSHM"); err != nil {
		t.Fatal(err)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d", primary.calls)
	}
	if text, _ := mem.Text(); text != "GSHM" {
		t.Errorf("fallback text = %q", text)
	}
}

func TestFallback_PrimarySuccessSkipsSecondary(t *testing.T) {
	primary := &Memory{}
	mem := &Memory{}
	f := &Fallback{Primary: primary, Secondary: mem}

	if err := f.WriteText(context.Background(), "GSHM"); err != nil {
		t.Fatal(err)
	}
	if _, n := mem.Text(); n != 0 {
		t.Errorf("secondary written %d times", n)
	}
}
