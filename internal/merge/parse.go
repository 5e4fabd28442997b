// Package merge turns provider-raw items into canonical business entities,
// guaranteeing idempotent, information-preserving merges.
package merge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Section groups the raw items one query produced. Providers that know
// which query yielded which items write sectioned artifacts; artifacts
// from tools without that attribution parse as a single section with an
// empty Query.
type Section struct {
	Query string            `json:"query"`
	Items []json.RawMessage `json:"items"`
}

// ParseFile reads a provider output artifact. Three encodings are accepted:
// a JSON array of {query, items} sections, a flat JSON array of raw objects,
// or newline-delimited JSON objects. Flat and line-delimited input collapses
// into one unattributed section. An empty or unparseable file is a hard
// failure; an empty JSON array is a legitimate zero-result run.
func ParseFile(path string) ([]Section, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw artifact %s: %w", path, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("raw artifact %s is empty", path)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(content, &elems); err == nil {
		if len(elems) == 0 {
			return []Section{}, nil
		}
		if isSectioned(elems[0]) {
			var sections []Section
			if err := json.Unmarshal(content, &sections); err != nil {
				return nil, fmt.Errorf("raw artifact %s has malformed sections: %w", path, err)
			}
			return sections, nil
		}
		return []Section{{Items: elems}}, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var items []json.RawMessage
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var probe map[string]any
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, fmt.Errorf("raw artifact %s is neither a JSON array nor line-delimited JSON: %w", path, err)
		}
		items = append(items, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan raw artifact %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("raw artifact %s contained no records", path)
	}
	return []Section{{Items: items}}, nil
}

// isSectioned reports whether the element is a {query, items} wrapper rather
// than a raw provider object. Provider objects never carry an "items" array.
func isSectioned(elem json.RawMessage) bool {
	var probe struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(elem, &probe); err != nil {
		return false
	}
	return probe.Items != nil
}
