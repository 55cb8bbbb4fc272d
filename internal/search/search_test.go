package search

import (
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcdickinson/doxsearch/internal/index"
	"github.com/jcdickinson/doxsearch/internal/searchdata"
)

func mustTable(t *testing.T, entries ...index.Entry) *index.Table {
	t.Helper()
	tbl, err := index.New(entries)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func entry(key, name, anchor string) index.Entry {
	return index.Entry{Key: key, DisplayName: name, Targets: []index.Target{{AnchorPath: anchor, ScopeLabel: "S"}}}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	builtin, err := searchdata.Builtin()
	if err != nil {
		t.Fatal(err)
	}
	c := NewCatalog()
	if err := c.Publish(searchdata.BuiltinSource, builtin, "https://example.org/SigmaTransform/html/search/"); err != nil {
		t.Fatal(err)
	}
	if err := c.Publish("eigen", mustTable(t,
		entry("setzero", "setZero", "../classEigen_1_1PlainObjectBase.html#a1"),
		entry("vector", "vector", "http://en.cppreference.com/w/cpp/container/vector.html"),
	), ""); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLookup_AcrossSources(t *testing.T) {
	c := testCatalog(t)

	results, truncated, err := c.Lookup("SETZ", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(results) != 1 || results[0].Source != "eigen" || results[0].Key != "setzero" {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Targets[0].URL != "" {
		t.Errorf("relative anchor without base should not resolve, got %q", results[0].Targets[0].URL)
	}

	results, _, err = c.Lookup("set", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range results {
		got = append(got, r.Source+":"+r.Key)
	}
	want := []string{
		"sigmatransform:setaction", "sigmatransform:setfs", "sigmatransform:setnumthreads",
		"sigmatransform:setsigma", "sigmatransform:setsize", "sigmatransform:setsteps",
		"sigmatransform:setwindow", "sigmatransform:setwinwidth", "eigen:setzero",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestLookup_ResolvesAnchors(t *testing.T) {
	c := testCatalog(t)

	results, _, err := c.Lookup("shearlet2d", []string{searchdata.BuiltinSource}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	r := results[0]
	if r.URI != "doxsearch://sigmatransform/shearlet2d" {
		t.Errorf("URI = %q", r.URI)
	}
	if len(r.Targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(r.Targets))
	}
	want := "https://example.org/SigmaTransform/html/classSigmaTransform_1_1Shearlet2D.html#ac8155570125f151df2e83013d900cb44"
	if r.Targets[0].URL != want {
		t.Errorf("URL = %q, want %q", r.Targets[0].URL, want)
	}
}

func TestLookup_Limit(t *testing.T) {
	c := testCatalog(t)

	results, truncated, err := c.Lookup("s", nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 || !truncated {
		t.Errorf("got %d results truncated=%v, want 3 truncated", len(results), truncated)
	}

	results, truncated, err = c.Lookup("setzero", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || truncated {
		t.Errorf("exact fit should not be truncated: %d %v", len(results), truncated)
	}
}

func TestLookup_UnknownSource(t *testing.T) {
	c := testCatalog(t)
	_, _, err := c.Lookup("x", []string{"nope"}, 0)
	if err == nil || !strings.Contains(err.Error(), `unknown source "nope"`) {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestLookup_NoMatch(t *testing.T) {
	c := testCatalog(t)
	results, _, err := c.Lookup("zzzz", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", results)
	}
}

func TestPublish_ReplaceKeepsOrder(t *testing.T) {
	c := testCatalog(t)
	if err := c.Publish(searchdata.BuiltinSource, mustTable(t, entry("only", "only", "a.html")), ""); err != nil {
		t.Fatal(err)
	}

	want := []SourceInfo{
		{Name: searchdata.BuiltinSource, Entries: 1},
		{Name: "eigen", Entries: 2},
	}
	if diff := cmp.Diff(want, c.Sources()); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestRemove(t *testing.T) {
	c := testCatalog(t)
	if !c.Remove("eigen") {
		t.Fatal("expected eigen to be removed")
	}
	if c.Remove("eigen") {
		t.Error("second remove should report false")
	}
	if _, ok := c.Table("eigen"); ok {
		t.Error("eigen still published")
	}
}

func TestListAndGet(t *testing.T) {
	c := testCatalog(t)

	all, err := c.List(searchdata.BuiltinSource)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 20 {
		t.Errorf("List returned %d entries, want 20", len(all))
	}

	got, base, err := c.Get(searchdata.BuiltinSource, "shear")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DisplayName != "shear" {
		t.Errorf("Get(shear) = %+v", got)
	}
	if base == nil || base.Host != "example.org" {
		t.Errorf("Get returned base %v", base)
	}

	got, base, err = c.Get("eigen", "vector")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || base != nil {
		t.Errorf("Get(eigen, vector) = %+v, %v", got, base)
	}

	if _, err := c.List("nope"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	c := testCatalog(t)
	tables := []*index.Table{
		mustTable(t, entry("setzero", "setZero", "a.html")),
		mustTable(t, entry("setzero", "setZero", "a.html"), entry("setones", "setOnes", "b.html")),
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			c.Publish("eigen", tables[i%2], "")
		}
	}()

	for i := 0; i < 200; i++ {
		results, _, err := c.Lookup("setzero", []string{"eigen"}, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Fatalf("lookup saw %d results mid-publish", len(results))
		}
	}
	close(stop)
	wg.Wait()
}

func TestResolveAnchor(t *testing.T) {
	base, _ := url.Parse("https://example.org/docs/html/search/")

	tests := []struct {
		base   *url.URL
		anchor string
		want   string
	}{
		{base, "../namespaceSigmaTransform.html#af23", "https://example.org/docs/html/namespaceSigmaTransform.html#af23"},
		{base, "http://en.cppreference.com/w/cpp/container/vector.html", "http://en.cppreference.com/w/cpp/container/vector.html"},
		{nil, "../namespaceSigmaTransform.html#af23", ""},
		{nil, "https://other.example.org/x.html", "https://other.example.org/x.html"},
	}
	for _, tt := range tests {
		if got := ResolveAnchor(tt.base, tt.anchor); got != tt.want {
			t.Errorf("ResolveAnchor(%v, %q) = %q, want %q", tt.base, tt.anchor, got, tt.want)
		}
	}
}
