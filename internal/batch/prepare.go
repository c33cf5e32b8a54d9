package batch

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/pheval-phen2gene/internal/config"
)

// FileSuffix follows the corpus prefix in every batch file name.
const FileSuffix = "-phen2gene-batch.txt"

// Batch is a prepared invocation batch.
type Batch struct {
	Corpus      string
	Path        string
	Environment config.Environment
	Commands    []string
}

// Request describes one corpus to prepare.
type Request struct {
	// Corpus is the batch file prefix. Defaults to the base name of TestdataDir.
	Corpus string
	// TestdataDir is the corpus directory. Used for the default prefix and
	// for phenopacket directory discovery.
	TestdataDir string
	// PhenopacketDir is the explicit phenopacket directory. When empty it is
	// discovered under TestdataDir by PhenopacketMarker.
	PhenopacketDir string
	// ResultsDir receives raw tool output. Resolved relative to the working
	// directory before it is embedded in local commands.
	ResultsDir string
	// BatchDir receives the batch file.
	BatchDir string
	// DataDir is the Phen2Gene data directory (containing lib/).
	DataDir string
	// ExecutablePath overrides the configured Phen2Gene directory.
	ExecutablePath string
}

// Preparer writes invocation batches.
type Preparer struct {
	Config *config.Config
	Logger *slog.Logger
	// Getwd reports the working directory; defaults to os.Getwd.
	Getwd func() (string, error)
}

// NewPreparer returns a Preparer for cfg with the default logger.
func NewPreparer(cfg *config.Config) *Preparer {
	return &Preparer{Config: cfg, Logger: slog.Default(), Getwd: os.Getwd}
}

// Prepare builds one command per phenopacket of the corpus and writes the
// batch file. Nothing is written when any phenopacket fails to load.
func (p *Preparer) Prepare(req Request) (*Batch, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	corpus := req.Corpus
	if corpus == "" {
		if req.TestdataDir == "" {
			return nil, errors.New("corpus name or testdata directory is required")
		}
		corpus = filepath.Base(filepath.Clean(req.TestdataDir))
	}
	if req.BatchDir == "" {
		return nil, errors.New("batch directory is required")
	}

	phenopacketDir, err := p.phenopacketDir(req)
	if err != nil {
		return nil, err
	}

	builder, err := p.builder(req)
	if err != nil {
		return nil, err
	}

	paths, err := ListPhenopackets(phenopacketDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPhenopackets, phenopacketDir)
	}

	commands := make([]string, 0, len(paths))
	for _, path := range paths {
		pp, err := ReadPhenopacket(path)
		if err != nil {
			return nil, err
		}
		if len(pp.ObservedTerms) == 0 {
			return nil, fmt.Errorf("phenopacket %s has no observed phenotypic features", path)
		}
		commands = append(commands, builder.Build(pp))
	}

	b := &Batch{
		Corpus:      corpus,
		Path:        filepath.Join(req.BatchDir, corpus+FileSuffix),
		Environment: p.Config.Run.Environment,
		Commands:    commands,
	}
	if err := writeAtomic(b.Path, commands); err != nil {
		return nil, err
	}

	logger.Info("batch prepared",
		"corpus", corpus,
		"path", b.Path,
		"environment", b.Environment,
		"commands", len(commands))
	return b, nil
}

func (p *Preparer) phenopacketDir(req Request) (string, error) {
	if req.PhenopacketDir != "" {
		info, err := os.Stat(req.PhenopacketDir)
		if err != nil || !info.IsDir() {
			return "", &MissingPhenopacketDirectoryError{Path: req.PhenopacketDir}
		}
		return req.PhenopacketDir, nil
	}
	return FindPhenopacketDir(req.TestdataDir, PhenopacketMarker)
}

func (p *Preparer) builder(req Request) (CommandBuilder, error) {
	cfg := p.Config
	b := CommandBuilder{
		Environment:  cfg.Run.Environment,
		Python:       cfg.Run.Python,
		ToolDir:      cfg.Run.ExecutablePath,
		WeightModel:  cfg.Run.WeightModel,
		DataDir:      req.DataDir,
		ResultsMount: cfg.Docker.ResultsMount,
		DataMount:    cfg.Docker.DataMount,
	}
	if req.ExecutablePath != "" {
		b.ToolDir = req.ExecutablePath
	}

	if cfg.Run.Environment == config.EnvironmentLocal {
		if b.ToolDir == "" {
			return CommandBuilder{}, errors.New("phen2gene executable path is required for local runs")
		}
		if req.ResultsDir == "" {
			return CommandBuilder{}, errors.New("results directory is required")
		}
		rel, err := p.relativeToWd(req.ResultsDir)
		if err != nil {
			return CommandBuilder{}, err
		}
		b.ResultsDir = rel
	}
	return b, nil
}

// relativeToWd expresses dir relative to the working directory. A path that
// cannot be made relative (another volume) is returned absolute.
func (p *Preparer) relativeToWd(dir string) (string, error) {
	getwd := p.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	wd, err := getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	abs := dir
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(wd, abs)
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil {
		return filepath.Clean(abs), nil
	}
	return rel, nil
}

// writeAtomic writes lines to a temp file in the target directory, syncs
// it and renames it over path.
func writeAtomic(path string, lines []string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create batch dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".batch-*")
	if err != nil {
		return fmt.Errorf("create batch file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write batch file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write batch file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync batch file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("chmod batch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close batch file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename batch file: %w", err)
	}
	return nil
}
