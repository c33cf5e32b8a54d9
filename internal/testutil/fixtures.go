package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content under dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Term is one phenotypic feature of a test phenopacket.
type Term struct {
	ID       string
	Excluded bool
}

// WritePhenopacket writes a minimal v2 phenopacket JSON file named
// {id}.json into dir and returns its path.
func WritePhenopacket(t *testing.T, dir, id string, terms ...Term) string {
	t.Helper()

	type ontologyClass struct {
		ID    string `json:"id"`
		Label string `json:"label,omitempty"`
	}
	type feature struct {
		Type     ontologyClass `json:"type"`
		Excluded bool          `json:"excluded,omitempty"`
	}
	features := make([]feature, 0, len(terms))
	for _, term := range terms {
		features = append(features, feature{Type: ontologyClass{ID: term.ID}, Excluded: term.Excluded})
	}

	doc := map[string]any{
		"id":                 id,
		"subject":            map[string]any{"id": id + "-subject"},
		"phenotypicFeatures": features,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	return WriteFile(t, dir, id+".json", string(data))
}
