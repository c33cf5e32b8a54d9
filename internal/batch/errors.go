package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingPhenopacketDirectory matches *MissingPhenopacketDirectoryError.
	ErrMissingPhenopacketDirectory = errors.New("missing phenopacket directory")

	// ErrBatchNotFound matches *BatchNotFoundError.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrAmbiguousBatch is returned when several batch files match a prefix.
	ErrAmbiguousBatch = errors.New("ambiguous batch prefix")

	// ErrNoPhenopackets is returned when the phenopacket directory holds no
	// phenopacket files.
	ErrNoPhenopackets = errors.New("no phenopackets found")
)

// MissingPhenopacketDirectoryError reports a corpus layout mismatch.
type MissingPhenopacketDirectoryError struct {
	// Path is the explicit directory that was rejected, if one was given.
	Path string
	// TestdataDir and Marker describe the failed discovery otherwise.
	TestdataDir string
	Marker      string
}

func (e *MissingPhenopacketDirectoryError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%v: %s is not a directory", ErrMissingPhenopacketDirectory, e.Path)
	}
	return fmt.Sprintf("%v: no directory containing %q under %s", ErrMissingPhenopacketDirectory, e.Marker, e.TestdataDir)
}

func (e *MissingPhenopacketDirectoryError) Is(target error) bool {
	return target == ErrMissingPhenopacketDirectory
}

// BatchNotFoundError reports that no batch file in Dir carries Prefix.
type BatchNotFoundError struct {
	Dir    string
	Prefix string
}

func (e *BatchNotFoundError) Error() string {
	return fmt.Sprintf("%v: no batch file with prefix %q in %s", ErrBatchNotFound, e.Prefix, e.Dir)
}

func (e *BatchNotFoundError) Is(target error) bool {
	return target == ErrBatchNotFound
}
