package batch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pheval-phen2gene/internal/config"
	"github.com/roach88/pheval-phen2gene/internal/testutil"
)

func loadConfig(t *testing.T, name string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "config", "testdata", name), config.LoadOptions{Env: map[string]string{}})
	require.NoError(t, err)
	return cfg
}

func newTestPreparer(cfg *config.Config, wd string) *Preparer {
	return &Preparer{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Getwd:  func() (string, error) { return wd, nil },
	}
}

// writeCorpus lays out {root}/{corpus}/phenopackets with two samples.
func writeCorpus(t *testing.T, root, corpus string) string {
	t.Helper()
	testdata := filepath.Join(root, corpus)
	pp := filepath.Join(testdata, "phenopackets")
	testutil.WritePhenopacket(t, pp, "patient_2", testutil.Term{ID: "HP:0004322"})
	testutil.WritePhenopacket(t, pp, "patient_1",
		testutil.Term{ID: "HP:0001250"},
		testutil.Term{ID: "HP:0000001", Excluded: true},
		testutil.Term{ID: "HP:0001263"},
		testutil.Term{ID: "HP:0001250"},
	)
	testutil.WriteFile(t, pp, "README.txt", "not a phenopacket")
	return testdata
}

func TestPrepare_DockerGolden(t *testing.T) {
	root := t.TempDir()
	testdata := writeCorpus(t, root, "lirical")
	batchDir := filepath.Join(root, "batches")

	p := newTestPreparer(loadConfig(t, "docker.yaml"), root)
	b, err := p.Prepare(Request{TestdataDir: testdata, BatchDir: batchDir})
	require.NoError(t, err)

	assert.Equal(t, "lirical", b.Corpus)
	assert.Equal(t, config.EnvironmentDocker, b.Environment)
	assert.Equal(t, filepath.Join(batchDir, "lirical-phen2gene-batch.txt"), b.Path)
	require.Len(t, b.Commands, 2)

	data, err := os.ReadFile(b.Path)
	require.NoError(t, err)
	testutil.AssertGolden(t, "docker_batch", data)
}

func TestPrepare_LocalCommand(t *testing.T) {
	root := t.TempDir()
	testdata := writeCorpus(t, root, "corpus")

	p := newTestPreparer(loadConfig(t, "local.yaml"), root)
	b, err := p.Prepare(Request{
		TestdataDir: testdata,
		BatchDir:    filepath.Join(root, "batches"),
		ResultsDir:  filepath.Join(root, "out", "raw"),
		DataDir:     "/data/p2g",
	})
	require.NoError(t, err)

	want := []string{
		"python3 /opt/Phen2Gene/phen2gene.py -m HP:0001250 HP:0001263 -w ic -d /data/p2g/lib -out out/raw -n patient_1.tsv",
		"python3 /opt/Phen2Gene/phen2gene.py -m HP:0004322 -w ic -d /data/p2g/lib -out out/raw -n patient_2.tsv",
	}
	assert.Equal(t, want, b.Commands)

	lines, err := Read(b.Path)
	require.NoError(t, err)
	assert.Equal(t, want, lines)
}

func TestPrepare_RelativeResultsDir(t *testing.T) {
	root := t.TempDir()
	testdata := writeCorpus(t, root, "corpus")

	p := newTestPreparer(loadConfig(t, "local.yaml"), filepath.Join(root, "work"))
	b, err := p.Prepare(Request{
		TestdataDir:    testdata,
		BatchDir:       filepath.Join(root, "batches"),
		ResultsDir:     filepath.Join(root, "out"),
		ExecutablePath: "/srv/p2g",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"python3 /srv/p2g/phen2gene.py -m HP:0004322 -w ic -out ../out -n patient_2.tsv",
		b.Commands[1])
}

func TestPrepare_ExplicitPhenopacketDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "cases")
	testutil.WritePhenopacket(t, dir, "case_a", testutil.Term{ID: "HP:0000118"})

	p := newTestPreparer(loadConfig(t, "docker.yaml"), root)
	b, err := p.Prepare(Request{Corpus: "custom", PhenopacketDir: dir, BatchDir: root})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "custom-phen2gene-batch.txt"), b.Path)
	assert.Equal(t, []string{
		"-m HP:0000118 -w sk -d /phen2gene-data/lib -out /phen2gene-results -n case_a.tsv",
	}, b.Commands)
}

func TestPrepare_MissingPhenopacketDirectory(t *testing.T) {
	root := t.TempDir()
	testdata := filepath.Join(root, "corpus")
	require.NoError(t, os.MkdirAll(filepath.Join(testdata, "vcf"), 0755))

	p := newTestPreparer(loadConfig(t, "docker.yaml"), root)
	_, err := p.Prepare(Request{TestdataDir: testdata, BatchDir: root})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingPhenopacketDirectory))

	var missing *MissingPhenopacketDirectoryError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, PhenopacketMarker, missing.Marker)

	_, err = p.Prepare(Request{Corpus: "x", PhenopacketDir: filepath.Join(root, "nope"), BatchDir: root})
	assert.ErrorIs(t, err, ErrMissingPhenopacketDirectory)
}

func TestPrepare_NoObservedTerms(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "corpus", "phenopackets")
	testutil.WritePhenopacket(t, dir, "only_excluded", testutil.Term{ID: "HP:0000118", Excluded: true})

	p := newTestPreparer(loadConfig(t, "docker.yaml"), root)
	_, err := p.Prepare(Request{TestdataDir: filepath.Join(root, "corpus"), BatchDir: root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no observed phenotypic features")

	_, statErr := os.Stat(filepath.Join(root, "corpus-phen2gene-batch.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPrepare_EmptyPhenopacketDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "corpus", "phenopackets"), 0755))

	p := newTestPreparer(loadConfig(t, "docker.yaml"), root)
	_, err := p.Prepare(Request{TestdataDir: filepath.Join(root, "corpus"), BatchDir: root})
	assert.ErrorIs(t, err, ErrNoPhenopackets)
}

func TestReadPhenopacket_V1Negated(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "v1.json", `{
  "id": "v1",
  "phenotypicFeatures": [
    {"type": {"id": "HP:0001250"}},
    {"type": {"id": "HP:0001263"}, "negated": true}
  ]
}`)
	pp, err := ReadPhenopacket(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", pp.ID)
	assert.Equal(t, "v1", pp.Stem())
	assert.Equal(t, []string{"HP:0001250"}, pp.ObservedTerms)
}
