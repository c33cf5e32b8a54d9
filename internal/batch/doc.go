// Package batch prepares and reads Phen2Gene invocation batches.
//
// A batch is a plain-text file with one tool invocation per line, one line
// per phenopacket of a corpus. Its name starts with the corpus prefix:
//
//	{corpus}-phen2gene-batch.txt
//
// Batch files are the hand-off between preparation and dispatch. They are
// written to a temporary file, synced and renamed into place, so a batch
// that Locate can see is always complete.
//
// Line format depends on the run environment. Local lines are complete
// shell commands:
//
//	python3 /opt/Phen2Gene/phen2gene.py -m HP:0001250 HP:0001263 -w sk -d data/lib -out results -n patient_1.tsv
//
// Docker lines are the argument list of the image entrypoint, with paths
// pointing at the container mounts:
//
//	-m HP:0001250 HP:0001263 -w sk -d /phen2gene-data/lib -out /phen2gene-results -n patient_1.tsv
package batch
