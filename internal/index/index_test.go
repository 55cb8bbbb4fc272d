package index

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleEntries() []Entry {
	return []Entry{
		{Key: "save2file_5fasc", DisplayName: "save2file_asc", Targets: []Target{{AnchorPath: "../namespaceSigmaTransform.html#ae6483cdd590f13ca5af6907227f47777", ScopeLabel: "SigmaTransform"}}},
		{Key: "setfs", DisplayName: "setFs", Targets: []Target{{AnchorPath: "../classSigmaTransform_1_1SigmaTransform.html#a937f4eda1cf09336299b3be96936190c", ScopeLabel: "SigmaTransform::SigmaTransform"}}},
		{Key: "shear", DisplayName: "shear", Targets: []Target{{AnchorPath: "../namespaceSigmaTransform.html#af23622e10d431c45bb312a61ee9b135a", ScopeLabel: "SigmaTransform"}}},
		{Key: "shearlet2d", DisplayName: "Shearlet2D", Targets: []Target{
			{AnchorPath: "../classSigmaTransform_1_1Shearlet2D.html#ac8155570125f151df2e83013d900cb44", ScopeLabel: "SigmaTransform::Shearlet2D::Shearlet2D(winFunc< 2 > window=NULL)"},
			{AnchorPath: "../classSigmaTransform_1_1Shearlet2D.html#ab1798e010d956c8771eca9a815a31c67", ScopeLabel: "SigmaTransform::Shearlet2D::Shearlet2D(const point< 2 > &width)"},
		}},
		{Key: "synthesize", DisplayName: "synthesize", Targets: []Target{{AnchorPath: "../classSigmaTransform_1_1SigmaTransform.html#a0c92d94621f10496d1819d65eeddeb1b", ScopeLabel: "SigmaTransform::SigmaTransform"}}},
	}
}

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(sampleEntries())
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	return tbl
}

func keys(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func TestNew_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		entries   []Entry
		wantIndex int
		wantKey   string
	}{
		{
			name:      "missing key",
			entries:   []Entry{{DisplayName: "x", Targets: []Target{{AnchorPath: "a.html"}}}},
			wantIndex: 0,
		},
		{
			name: "no targets",
			entries: []Entry{
				{Key: "ok", DisplayName: "ok", Targets: []Target{{AnchorPath: "a.html"}}},
				{Key: "bad", DisplayName: "bad"},
			},
			wantIndex: 1,
			wantKey:   "bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedEntry) {
				t.Errorf("errors.Is(err, ErrMalformedEntry) = false for %v", err)
			}
			var me *MalformedEntryError
			if !errors.As(err, &me) {
				t.Fatalf("expected *MalformedEntryError, got %T", err)
			}
			if me.Index != tt.wantIndex || me.Key != tt.wantKey {
				t.Errorf("got index=%d key=%q, want index=%d key=%q", me.Index, me.Key, tt.wantIndex, tt.wantKey)
			}
		})
	}
}

func TestNew_Empty(t *testing.T) {
	tbl, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tbl.Len())
	}
	if got := tbl.Lookup("x"); got == nil || len(got) != 0 {
		t.Errorf("Lookup on empty table = %#v, want empty non-nil slice", got)
	}
}

func TestLookup(t *testing.T) {
	tbl := sampleTable(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"shear", []string{"shear", "shearlet2d"}},
		{"SHEARLET", []string{"shearlet2d"}},
		{"save2file_asc", []string{"save2file_5fasc"}},
		{"5f", []string{"save2file_5fasc"}},
		{"s", []string{"save2file_5fasc", "setfs", "shear", "shearlet2d", "synthesize"}},
		{"nomatch", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := keys(tbl.Lookup(tt.query))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Lookup(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestLookup_EmptyQueryMatchesAll(t *testing.T) {
	tbl := sampleTable(t)
	if diff := cmp.Diff(tbl.All(), tbl.Lookup("")); diff != "" {
		t.Errorf("Lookup(\"\") != All() (-all +lookup):\n%s", diff)
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	tbl := sampleTable(t)
	if diff := cmp.Diff(tbl.Lookup("save2file_asc"), tbl.Lookup("SAVE2FILE_ASC")); diff != "" {
		t.Errorf("case mismatch (-lower +upper):\n%s", diff)
	}
}

func TestLookup_SubsequenceOfAll(t *testing.T) {
	tbl := sampleTable(t)
	all := tbl.All()

	for _, q := range []string{"", "s", "set", "shear", "2d", "zzz"} {
		got := tbl.Lookup(q)
		j := 0
		for _, e := range got {
			for j < len(all) && all[j].Key != e.Key {
				j++
			}
			if j == len(all) {
				t.Fatalf("Lookup(%q): %q is out of order or not in All()", q, e.Key)
			}
			j++
		}
	}
}

func TestLookup_Idempotent(t *testing.T) {
	tbl := sampleTable(t)
	first := tbl.Lookup("shear")
	first[0].Targets[0].AnchorPath = "mutated"
	first[0].Key = "mutated"

	second := tbl.Lookup("shear")
	third := tbl.Lookup("shear")
	if diff := cmp.Diff(second, third); diff != "" {
		t.Errorf("repeated lookups differ:\n%s", diff)
	}
	if second[0].Key != "shear" || second[0].Targets[0].AnchorPath == "mutated" {
		t.Error("mutating a result leaked into the table")
	}
}

func TestNew_CopiesInput(t *testing.T) {
	in := sampleEntries()
	tbl, err := New(in)
	if err != nil {
		t.Fatal(err)
	}
	in[0].Key = "changed"
	in[3].Targets[0].ScopeLabel = "changed"

	if got := tbl.All()[0].Key; got != "save2file_5fasc" {
		t.Errorf("table key changed to %q after input mutation", got)
	}
	if got := tbl.All()[3].Targets[0].ScopeLabel; got == "changed" {
		t.Error("table target changed after input mutation")
	}
}

func TestTargetsNeverEmpty(t *testing.T) {
	tbl := sampleTable(t)
	for _, e := range tbl.All() {
		if len(e.Targets) == 0 {
			t.Errorf("entry %q has no targets", e.Key)
		}
	}
}

func TestLookup_Concurrent(t *testing.T) {
	tbl := sampleTable(t)
	want := keys(tbl.Lookup("s"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := keys(tbl.Lookup("s")); !cmp.Equal(want, got) {
					t.Errorf("concurrent lookup mismatch: %v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
