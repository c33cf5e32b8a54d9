package batch

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DomainBatch separates batch digests from other hashes.
const DomainBatch = "pheval-phen2gene/batch/v1"

// Locate returns the single batch file in dir whose name starts with prefix.
// The prefix must be followed by the end of the name or one of '-', '_', '.'
// so that "sample_1" does not match "sample_10-phen2gene-batch.txt".
func Locate(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", &BatchNotFoundError{Dir: dir, Prefix: prefix}, err)
	}

	var matches []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !hasPrefix(e.Name(), prefix) {
			continue
		}
		matches = append(matches, filepath.Join(dir, e.Name()))
	}

	switch len(matches) {
	case 0:
		return "", &BatchNotFoundError{Dir: dir, Prefix: prefix}
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w %q in %s: %s", ErrAmbiguousBatch, prefix, dir, strings.Join(matches, ", "))
	}
}

func hasPrefix(name, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(name, prefix) {
		return false
	}
	rest := name[len(prefix):]
	return rest == "" || strings.ContainsRune("-_.", rune(rest[0]))
}

// Read returns the non-blank lines of a batch file in order.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch: %w", err)
	}
	defer f.Close()

	var commands []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			commands = append(commands, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	return commands, nil
}

// Digest is the content address of an ordered command list.
// Format: hex(SHA256(DomainBatch + 0x00 + commands joined by '\n')).
func Digest(commands []string) string {
	h := sha256.New()
	h.Write([]byte(DomainBatch))
	h.Write([]byte{0x00})
	h.Write([]byte(strings.Join(commands, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}
