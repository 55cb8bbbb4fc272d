package searchdata

import (
	"bytes"
	"errors"
	"fmt"
	"html"

	"github.com/jcdickinson/doxsearch/internal/index"
	"gopkg.in/yaml.v3"
)

var errNoLiteral = errors.New("no searchData literal")

// Parse extracts entries from a Doxygen search-data script:
//
//	var searchData=
//	[
//	  ['key',['Name',['../file.html#anchor',1,'Scope'],...]],
//	];
//
// The array literal holds only strings and integers. Its strings are
// re-quoted with their JS escapes decoded, and the result is decoded as a
// YAML flow sequence. Entries come back in file order. Shape checks on keys
// and targets are left to index.New.
func Parse(name string, data []byte) ([]index.Entry, error) {
	body, err := arrayLiteral(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	body, err = quoteStrings(body)
	if err != nil {
		return nil, fmt.Errorf("%s: decoding search data: %w", name, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("%s: decoding search data: %w", name, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s: search data is not an array", name)
	}

	seq := root.Content[0]
	entries := make([]index.Entry, 0, len(seq.Content))
	for i, n := range seq.Content {
		e, err := parseEntry(n)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d (line %d): %w", name, i, n.Line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// arrayLiteral strips the `var searchData=` assignment and trailing `;`.
func arrayLiteral(data []byte) ([]byte, error) {
	i := bytes.Index(data, []byte("searchData"))
	if i < 0 {
		return nil, errNoLiteral
	}
	rest := data[i+len("searchData"):]
	eq := bytes.IndexByte(rest, '=')
	if eq < 0 {
		return nil, errNoLiteral
	}
	body := bytes.TrimSpace(rest[eq+1:])
	body = bytes.TrimSpace(bytes.TrimSuffix(body, []byte(";")))
	if len(body) == 0 || body[0] != '[' {
		return nil, errNoLiteral
	}
	return body, nil
}

// ['key',['Name',target,target,...]]
func parseEntry(n *yaml.Node) (index.Entry, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return index.Entry{}, fmt.Errorf("expected [key, [name, targets...]]")
	}
	key, err := scalar(n.Content[0])
	if err != nil {
		return index.Entry{}, fmt.Errorf("key: %w", err)
	}

	body := n.Content[1]
	if body.Kind != yaml.SequenceNode || len(body.Content) == 0 {
		return index.Entry{}, fmt.Errorf("expected [name, targets...] for %q", key)
	}
	name, err := scalar(body.Content[0])
	if err != nil {
		return index.Entry{}, fmt.Errorf("display name of %q: %w", key, err)
	}

	e := index.Entry{
		Key:         key,
		DisplayName: html.UnescapeString(name),
		Targets:     make([]index.Target, 0, len(body.Content)-1),
	}
	for j, tn := range body.Content[1:] {
		t, err := parseTarget(tn)
		if err != nil {
			return index.Entry{}, fmt.Errorf("target %d of %q: %w", j, key, err)
		}
		e.Targets = append(e.Targets, t)
	}
	return e, nil
}

// ['../file.html#anchor',1,'Scope'], the scope being optional. A flag of 0
// marks a link into documentation outside this set.
func parseTarget(n *yaml.Node) (index.Target, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 || len(n.Content) > 3 {
		return index.Target{}, fmt.Errorf("expected [anchor, flag, scope]")
	}
	anchor, err := scalar(n.Content[0])
	if err != nil {
		return index.Target{}, fmt.Errorf("anchor: %w", err)
	}
	if anchor == "" {
		return index.Target{}, fmt.Errorf("empty anchor")
	}
	flag, err := scalar(n.Content[1])
	if err != nil {
		return index.Target{}, fmt.Errorf("flag: %w", err)
	}

	t := index.Target{AnchorPath: anchor, External: flag == "0"}
	if len(n.Content) == 3 {
		scope, err := scalar(n.Content[2])
		if err != nil {
			return index.Target{}, fmt.Errorf("scope: %w", err)
		}
		t.ScopeLabel = html.UnescapeString(scope)
	}
	return t, nil
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a string at line %d", n.Line)
	}
	return n.Value, nil
}
