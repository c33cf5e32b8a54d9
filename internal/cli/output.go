package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/pheval-phen2gene/internal/batch"
	"github.com/roach88/pheval-phen2gene/internal/config"
	"github.com/roach88/pheval-phen2gene/internal/dispatch"
	"github.com/roach88/pheval-phen2gene/internal/hgnc"
	"github.com/roach88/pheval-phen2gene/internal/result"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // Phen2Gene failed or produced unusable output
	ExitCommandError = 2 // Bad flags, config or corpus layout
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeInvalidConfig = "E002"
	ErrCodeLedger        = "E008"

	// Preparation
	ErrCodeMissingPhenopackets = "E101"
	ErrCodeNoPhenopackets      = "E102"

	// Dispatch
	ErrCodeBatchNotFound  = "E110"
	ErrCodeAmbiguousBatch = "E111"
	ErrCodeToolFailed     = "E112"

	// Post-processing
	ErrCodeMalformedRow  = "E120"
	ErrCodeMissingColumn = "E121"
	ErrCodeUnresolved    = "E122"
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command.
type CLIError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails holds the fields of the typed pipeline error behind a
// failure. Only the fields of that error are set.
type ErrorDetails struct {
	// Dispatch
	CommandIndex int    `json:"command_index,omitempty"` // 1-based
	Command      string `json:"command,omitempty"`
	ExitCode     int    `json:"exit_code,omitempty"`
	BatchDir     string `json:"batch_dir,omitempty"`
	Prefix       string `json:"prefix,omitempty"`

	// Preparation
	Path string `json:"path,omitempty"`

	// Post-processing
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Scheme string `json:"scheme,omitempty"`
}

// errorDetails extracts ErrorDetails from the first typed error in err's
// chain. Returns nil when err carries none.
func errorDetails(err error) *ErrorDetails {
	var (
		toolErr    *dispatch.ToolExecutionFailedError
		rowErr     *result.MalformedRowError
		symbolErr  *hgnc.UnresolvedIdentifierError
		notFound   *batch.BatchNotFoundError
		missingDir *batch.MissingPhenopacketDirectoryError
	)
	switch {
	case errors.As(err, &toolErr):
		return &ErrorDetails{CommandIndex: toolErr.Index + 1, Command: toolErr.Command, ExitCode: toolErr.ExitCode}
	case errors.As(err, &rowErr):
		return &ErrorDetails{File: rowErr.File, Line: rowErr.Line, Value: rowErr.Value, Reason: rowErr.Reason}
	case errors.As(err, &symbolErr):
		return &ErrorDetails{Symbol: symbolErr.Symbol, Scheme: string(symbolErr.Scheme)}
	case errors.As(err, &notFound):
		return &ErrorDetails{BatchDir: notFound.Dir, Prefix: notFound.Prefix}
	case errors.As(err, &missingDir):
		path := missingDir.Path
		if path == "" {
			path = missingDir.TestdataDir
		}
		return &ErrorDetails{Path: path}
	}
	return nil
}

// classify maps a pipeline error onto an error code and exit code.
// Layout and configuration problems are command errors; failures of the
// tool or its output are run failures.
func classify(err error) (code string, exit int) {
	switch {
	case errors.Is(err, config.ErrInvalidConfig):
		return ErrCodeInvalidConfig, ExitCommandError
	case errors.Is(err, batch.ErrMissingPhenopacketDirectory):
		return ErrCodeMissingPhenopackets, ExitCommandError
	case errors.Is(err, batch.ErrNoPhenopackets):
		return ErrCodeNoPhenopackets, ExitCommandError
	case errors.Is(err, batch.ErrBatchNotFound):
		return ErrCodeBatchNotFound, ExitCommandError
	case errors.Is(err, batch.ErrAmbiguousBatch):
		return ErrCodeAmbiguousBatch, ExitCommandError
	case errors.Is(err, dispatch.ErrToolExecutionFailed):
		return ErrCodeToolFailed, ExitFailure
	case errors.Is(err, result.ErrMalformedResultRow):
		return ErrCodeMalformedRow, ExitFailure
	case errors.Is(err, result.ErrMissingColumn):
		return ErrCodeMissingColumn, ExitFailure
	case errors.Is(err, hgnc.ErrUnresolvedIdentifier):
		return ErrCodeUnresolved, ExitFailure
	case errors.Is(err, errLedger):
		return ErrCodeLedger, ExitCommandError
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return ErrCodeGeneric, exitErr.Code
	}
	return ErrCodeGeneric, ExitFailure
}

// OutputFormatter writes command results as JSON or text.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	// Result types implement fmt.Stringer.
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail reports err under message and returns it as an *ExitError whose
// code follows the error's kind.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	_ = f.write(&CLIError{
		Code:    code,
		Message: message + ": " + err.Error(),
		Details: errorDetails(err),
	})
	return WrapExitError(exit, code+": "+message, err)
}

func (f *OutputFormatter) write(e *CLIError) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: e})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if !f.Verbose || e.Details == nil {
		return nil
	}
	d := e.Details
	switch {
	case d.Command != "":
		fmt.Fprintf(f.Writer, "  command %d exited with status %d: %s\n", d.CommandIndex, d.ExitCode, d.Command)
	case d.File != "":
		fmt.Fprintf(f.Writer, "  %s:%d: %s (%q)\n", d.File, d.Line, d.Reason, d.Value)
	case d.Symbol != "":
		fmt.Fprintf(f.Writer, "  gene symbol %q has no %s\n", d.Symbol, d.Scheme)
	case d.Prefix != "":
		fmt.Fprintf(f.Writer, "  no batch %q in %s\n", d.Prefix, d.BatchDir)
	case d.Path != "":
		fmt.Fprintf(f.Writer, "  phenopackets expected under %s\n", d.Path)
	}
	return nil
}
