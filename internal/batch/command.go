package batch

import (
	"path/filepath"
	"strings"

	"github.com/roach88/pheval-phen2gene/internal/config"
)

// CommandBuilder renders one batch line per phenopacket.
type CommandBuilder struct {
	Environment config.Environment
	Python      string
	// ToolDir is the Phen2Gene checkout holding phen2gene.py (local only).
	ToolDir     string
	WeightModel string
	// DataDir is the tool data directory; its lib/ subdirectory is passed
	// as the database. Local only; docker lines use DataMount.
	DataDir string
	// ResultsDir is where the tool writes output (local only).
	ResultsDir   string
	ResultsMount string
	DataMount    string
}

// Build returns the batch line for p.
func (b CommandBuilder) Build(p Phenopacket) string {
	var args []string
	if b.Environment == config.EnvironmentLocal {
		args = append(args, b.Python, filepath.Join(b.ToolDir, "phen2gene.py"))
	}

	args = append(args, "-m")
	args = append(args, p.ObservedTerms...)
	if b.WeightModel != "" {
		args = append(args, "-w", b.WeightModel)
	}

	if b.Environment == config.EnvironmentDocker {
		args = append(args, "-d", b.DataMount+"/lib", "-out", b.ResultsMount)
	} else {
		if b.DataDir != "" {
			args = append(args, "-d", filepath.Join(b.DataDir, "lib"))
		}
		args = append(args, "-out", b.ResultsDir)
	}

	args = append(args, "-n", p.Stem()+".tsv")
	return strings.Join(args, " ")
}
