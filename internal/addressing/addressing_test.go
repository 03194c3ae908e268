package addressing

import (
	"errors"
	"testing"

	"github.com/starford/seqsync/internal/apperr"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"", Label, false},
		{"label", Label, false},
		{"AUTH", Auth, false},
		{" auth ", Auth, false},
		{"pdb", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.err {
			if !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Errorf("ParseMode(%q) err = %v, want invalid argument", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestSpan_Matches(t *testing.T) {
	d, err := Span(Label, "A", 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		chain string
		seq   int
		want  bool
	}{
		{"A", 9, false},
		{"A", 10, true},
		{"A", 15, true},
		{"A", 20, true},
		{"A", 21, false},
		{"B", 15, false},
	} {
		if got := d.Matches(tc.chain, tc.seq); got != tc.want {
			t.Errorf("Matches(%s,%d) = %v, want %v", tc.chain, tc.seq, got, tc.want)
		}
	}
}

func TestRange_SingleResidue(t *testing.T) {
	d, err := Range(Auth, "H", 7)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Matches("H", 7) || d.Matches("H", 8) {
		t.Errorf("single residue descriptor matched wrong residues: %s", d)
	}
	if got := d.String(); got != `(auth_asym_id == "H" and auth_seq_id == 7)` {
		t.Errorf("String() = %s", got)
	}
}

func TestChain_WholeChain(t *testing.T) {
	d, err := Chain(Label, "B")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Matches("B", -5) || !d.Matches("B", 99999) {
		t.Error("whole-chain descriptor should match every residue number")
	}
	if d.Matches("A", 1) {
		t.Error("whole-chain descriptor matched another chain")
	}
}

func TestSpan_Invalid(t *testing.T) {
	if _, err := Span(Label, "A", 5, 4); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("start > end: err = %v", err)
	}
	if _, err := Span(Label, "", 1, 4); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("empty chain: err = %v", err)
	}
	if _, err := Span(Mode("mixed"), "A", 1, 4); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("bad mode: err = %v", err)
	}
}

func TestUnion_RejectsMixedModes(t *testing.T) {
	a, _ := Span(Label, "A", 1, 5)
	b, _ := Span(Auth, "A", 1, 5)
	if _, err := Union(a, b); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("mixed union err = %v, want invalid argument", err)
	}
}

func TestUnion_MatchesAnyTerm(t *testing.T) {
	a, _ := Span(Label, "A", 1, 5)
	b, _ := Span(Label, "B", 10, 12)
	c, _ := Span(Label, "A", 3, 8)
	u, err := Union(a, b, c)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Matches("A", 7) || !u.Matches("B", 11) || u.Matches("B", 5) {
		t.Errorf("union matched incorrectly: %s", u)
	}
	if got := u.Chains(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("Chains() = %v", got)
	}
	empty, err := Union()
	if err != nil || !empty.Empty() {
		t.Errorf("empty union = %v, %v", empty, err)
	}
}
