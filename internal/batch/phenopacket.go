package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// PhenopacketMarker is the token that identifies the phenopacket
// subdirectory of a corpus when no explicit directory is given.
const PhenopacketMarker = "phenopacket"

// Phenopacket holds the parts of a phenopacket the batch needs.
type Phenopacket struct {
	ID string
	// Path is the file the phenopacket was read from.
	Path string
	// ObservedTerms are HPO ids of non-excluded phenotypic features, in
	// document order without duplicates.
	ObservedTerms []string
}

// Stem is the file name without extension; it names the tool output.
func (p Phenopacket) Stem() string {
	base := filepath.Base(p.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type phenopacketDoc struct {
	ID                 string `json:"id"`
	PhenotypicFeatures []struct {
		Type struct {
			ID string `json:"id"`
		} `json:"type"`
		Excluded bool `json:"excluded"`
		// Negated is the v1 spelling of Excluded.
		Negated bool `json:"negated"`
	} `json:"phenotypicFeatures"`
}

// ReadPhenopacket parses a v1 or v2 phenopacket JSON file.
func ReadPhenopacket(path string) (Phenopacket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Phenopacket{}, fmt.Errorf("read phenopacket: %w", err)
	}

	var doc phenopacketDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Phenopacket{}, fmt.Errorf("parse phenopacket %s: %w", path, err)
	}

	p := Phenopacket{ID: doc.ID, Path: path}
	for _, f := range doc.PhenotypicFeatures {
		id := strings.TrimSpace(f.Type.ID)
		if id == "" || f.Excluded || f.Negated || slices.Contains(p.ObservedTerms, id) {
			continue
		}
		p.ObservedTerms = append(p.ObservedTerms, id)
	}
	return p, nil
}

// FindPhenopacketDir returns the first subdirectory of testdataDir (in name
// order) whose name contains marker.
func FindPhenopacketDir(testdataDir, marker string) (string, error) {
	entries, err := os.ReadDir(testdataDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", &MissingPhenopacketDirectoryError{TestdataDir: testdataDir, Marker: marker}, err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.Contains(e.Name(), marker) {
			return filepath.Join(testdataDir, e.Name()), nil
		}
	}
	return "", &MissingPhenopacketDirectoryError{TestdataDir: testdataDir, Marker: marker}
}

// ListPhenopackets returns the *.json files of dir sorted by name.
func ListPhenopackets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list phenopackets: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
