package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/hugs314/CIRIquant/annotation"
	"github.com/hugs314/CIRIquant/circ"
	"github.com/hugs314/CIRIquant/encoding/bamprovider"
	"github.com/hugs314/CIRIquant/encoding/fasta"
	"github.com/hugs314/CIRIquant/junction"
	"github.com/hugs314/CIRIquant/pseudo"
)

func run(ctx context.Context, flags ciriquantFlags) error {
	table, err := circ.LoadBED(ctx, flags.bedPath)
	if err != nil {
		return err
	}
	pseudoBAM := flags.pseudoBAMPath
	if pseudoBAM == "" {
		if pseudoBAM, err = alignPseudo(ctx, flags, table); err != nil {
			return err
		}
	}
	return quantify(ctx, flags, pseudoBAM, table)
}

// alignPseudo builds the doubled circRNA reference, indexes it with
// hisat2-build and aligns the read pairs against it. Returns the path
// of the sorted, indexed alignment.
func alignPseudo(ctx context.Context, flags ciriquantFlags, table *circ.Table) (sortedBAM string, err error) {
	in, err := file.Open(ctx, flags.referencePath)
	if err != nil {
		return "", errors.E(err, flags.referencePath)
	}
	defer file.CloseAndReport(ctx, in, &err)
	genome, err := openGenome(ctx, in, flags.referencePath)
	if err != nil {
		return "", err
	}

	fastaPath := flags.outPrefix + "_index.fa"
	if err := writePseudoFasta(ctx, fastaPath, genome, table); err != nil {
		return "", err
	}
	if err := writeFastaIndex(ctx, fastaPath); err != nil {
		return "", err
	}

	indexPrefix := flags.outPrefix + "_index"
	if err := runTool(ctx, flags.hisat2Build, "-p", strconv.Itoa(flags.threads), "-f", fastaPath, indexPrefix); err != nil {
		return "", err
	}
	sortedBAM = flags.outPrefix + "_denovo.sorted.bam"
	if err := alignAndSort(ctx, flags, indexPrefix, sortedBAM); err != nil {
		return "", err
	}
	if err := runTool(ctx, flags.samtools, "index", sortedBAM); err != nil {
		return "", err
	}
	return sortedBAM, nil
}

// openGenome serves the reference through its samtools index when one
// exists next to it, and otherwise reads it whole. The returned Fasta
// reads from in, which must stay open while it is in use.
func openGenome(ctx context.Context, in file.File, path string) (genome fasta.Fasta, err error) {
	idx, idxErr := file.Open(ctx, path+".fai")
	if idxErr != nil {
		return fasta.New(in.Reader(ctx))
	}
	defer file.CloseAndReport(ctx, idx, &err)
	return fasta.NewIndexed(in.Reader(ctx), idx.Reader(ctx))
}

func writePseudoFasta(ctx context.Context, path string, genome fasta.Fasta, table *circ.Table) (err error) {
	dst, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, dst, &err)
	w := bufio.NewWriter(dst.Writer(ctx))
	n, err := pseudo.BuildFasta(genome, table, w)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.E("no circRNA sequence could be extracted from the reference")
	}
	return w.Flush()
}

func writeFastaIndex(ctx context.Context, fastaPath string) (err error) {
	in, err := file.Open(ctx, fastaPath)
	if err != nil {
		return errors.E(err, fastaPath)
	}
	defer file.CloseAndReport(ctx, in, &err)
	dst, err := file.Create(ctx, fastaPath+".fai")
	if err != nil {
		return errors.E(err, fastaPath+".fai")
	}
	defer file.CloseAndReport(ctx, dst, &err)
	return fasta.GenerateIndex(dst.Writer(ctx), bufio.NewReader(in.Reader(ctx)))
}

// runTool runs an external command with its output passed through to
// stderr. A non-zero exit is an error.
func runTool(ctx context.Context, name string, args ...string) error {
	log.Printf("running %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.E(err, fmt.Sprintf("%s %s", name, strings.Join(args, " ")))
	}
	return nil
}

// alignAndSort pipes hisat2 SAM output straight into samtools sort.
func alignAndSort(ctx context.Context, flags ciriquantFlags, indexPrefix, sortedBAM string) error {
	threads := strconv.Itoa(flags.threads)
	alignCmd := exec.CommandContext(ctx, flags.hisat2,
		"-p", threads, "--dta", "-q",
		"-x", indexPrefix, "-1", flags.r1, "-2", flags.r2)
	sortCmd := exec.CommandContext(ctx, flags.samtools,
		"sort", "--threads", threads, "-o", sortedBAM, "-")
	pipe, err := alignCmd.StdoutPipe()
	if err != nil {
		return err
	}
	sortCmd.Stdin = pipe
	alignCmd.Stderr = os.Stderr
	sortCmd.Stdout = os.Stderr
	sortCmd.Stderr = os.Stderr

	log.Printf("aligning %s and %s against the pseudo reference", flags.r1, flags.r2)
	if err := alignCmd.Start(); err != nil {
		return errors.E(err, flags.hisat2)
	}
	if err := sortCmd.Start(); err != nil {
		alignCmd.Process.Kill() // nolint: errcheck
		alignCmd.Wait()         // nolint: errcheck
		return errors.E(err, flags.samtools)
	}
	alignErr := alignCmd.Wait()
	sortErr := sortCmd.Wait()
	if alignErr != nil {
		return errors.E(alignErr, "hisat2 alignment failed")
	}
	if sortErr != nil {
		return errors.E(sortErr, "samtools sort failed")
	}
	return nil
}

// quantify runs the junction counting stages and writes the expression
// GTF and the alignment stat file.
func quantify(ctx context.Context, flags ciriquantFlags, pseudoBAM string, table *circ.Table) (err error) {
	idx, err := annotation.LoadIndex(ctx, flags.gtfPath)
	if err != nil {
		return err
	}

	pseudoProvider := bamprovider.NewProvider(pseudoBAM)
	defer closeProvider(pseudoProvider, &err)
	cands, err := junction.ScanPseudo(pseudoProvider, flags.anchor, flags.threads)
	if err != nil {
		return err
	}

	genomeProvider := bamprovider.NewProvider(flags.genomeBAMPath)
	defer closeProvider(genomeProvider, &err)
	fp, fsjHits, err := junction.ReconcileGenome(genomeProvider, table, cands, flags.anchor, flags.threads)
	if err != nil {
		return err
	}
	bsjEv, fsjEv := junction.Aggregate(cands, fp, fsjHits)

	total, mapped, err := junction.Flagstat(genomeProvider)
	if err != nil {
		return err
	}

	// Annotate only the circRNAs that will appear in the output.
	bsj := bsjEv.Counts()
	anns := map[string]circ.Annotation{}
	table.Do(func(rec *circ.Record) bool {
		if bsj[rec.ID] <= 0 {
			return false
		}
		var ann circ.Annotation
		if ann, err = idx.Classify(rec); err != nil {
			return true
		}
		anns[rec.ID] = ann
		return false
	})
	if err != nil {
		return err
	}

	if err := circ.WriteExpression(ctx, flags.outPrefix+".gtf", table, bsj, fsjEv.Counts(), func(rec *circ.Record) circ.Annotation {
		return anns[rec.ID]
	}); err != nil {
		return err
	}
	stat := circ.Stat{
		TotalReads:  total,
		MappedReads: mapped,
		CircReads:   junction.CircReads(bsjEv),
	}
	return circ.WriteStat(ctx, flags.outPrefix+".stat", stat)
}

func closeProvider(p bamprovider.Provider, err *error) {
	if cerr := p.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
