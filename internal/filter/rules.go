package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BaseRulesFile    = "base_keywords.json"
	DynamicRulesFile = "dynamic_keywords.json"
)

// Document is the on-disk shape of a ruleset source file.
type Document struct {
	High     map[string][]string `json:"HIGH"`
	Medium   map[string][]string `json:"MEDIUM"`
	Excluded []string            `json:"EXCLUDED,omitempty"`
}

// Entry binds one keyword to the category it was declared under.
type Entry struct {
	Keyword  string
	Category string
}

// ruleset is an immutable snapshot of the active keyword tables. Entries keep
// the order they were declared in, base file first, overlay second; the first
// matching entry decides the reported category.
type ruleset struct {
	high    []Entry
	medium  []Entry
	exclude []string
}

func (r *ruleset) counts() (high, medium, exclude int) {
	if r == nil {
		return 0, 0, 0
	}
	return len(r.high), len(r.medium), len(r.exclude)
}

// loadRuleset builds a snapshot from the base file plus the dynamic overlay.
// A missing file is skipped; a malformed file fails the whole load so a bad
// overlay never half-replaces the active rules.
func loadRuleset(dataDir string) (*ruleset, error) {
	rs := &ruleset{}
	for _, name := range []string{BaseRulesFile, DynamicRulesFile} {
		path := filepath.Join(dataDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if err := appendDocument(rs, raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return rs, nil
}

// appendDocument walks the JSON token stream instead of unmarshaling into
// maps so declaration order inside the file is preserved.
func appendDocument(rs *ruleset, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return err
		}
		switch key {
		case "HIGH":
			if err := appendTier(dec, &rs.high); err != nil {
				return err
			}
		case "MEDIUM":
			if err := appendTier(dec, &rs.medium); err != nil {
				return err
			}
		case "EXCLUDED":
			words, err := stringList(dec)
			if err != nil {
				return err
			}
			rs.exclude = append(rs.exclude, words...)
		default:
			// Unknown top-level key; skip its value.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	return expectDelim(dec, '}')
}

func appendTier(dec *json.Decoder, entries *[]Entry) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		category, err := stringToken(dec)
		if err != nil {
			return err
		}
		words, err := stringList(dec)
		if err != nil {
			return err
		}
		for _, w := range words {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			*entries = append(*entries, Entry{Keyword: w, Category: category})
		}
	}
	return expectDelim(dec, '}')
}

func stringList(dec *json.Decoder) ([]string, error) {
	var out []string
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	cleaned := out[:0]
	for _, w := range out {
		if strings.TrimSpace(w) != "" {
			cleaned = append(cleaned, w)
		}
	}
	return cleaned, nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected string key, got %v", tok)
	}
	return s, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// SaveOverlay replaces the dynamic overlay file with the given document.
func SaveOverlay(dataDir string, doc Document) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, DynamicRulesFile), raw, 0o644)
}
