package main

/*
ciriquant quantifies circRNA expression from paired-end RNA-seq data.
Reads are aligned against a pseudo-circular reference in which every
candidate circRNA sequence appears twice in tandem, so back-splice
junction reads align linearly across the doubled boundary. Candidates
whose reads also align linearly to the genome are discarded, forward
splice reads are counted around each junction site, and every expressed
circRNA is annotated against a gene model GTF.
*/

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

// Collection of options set via cmdline flags.
type ciriquantFlags struct {
	bedPath       string
	gtfPath       string
	referencePath string
	genomeBAMPath string
	pseudoBAMPath string
	r1, r2        string
	outPrefix     string
	threads       int
	anchor        int
	hisat2        string
	hisat2Build   string
	samtools      string
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s -bed circ.bed -gtf anno.gtf -bam genome.bam -o prefix [OPTIONS]

The pseudo-circular alignment is either taken from -pseudo-bam or
produced by aligning -r1/-r2 against a doubled circRNA reference built
from -reference.

Options:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flags := ciriquantFlags{}
	flag.StringVar(&flags.bedPath, "bed", "", "Input circRNA junction sites, BED format")
	flag.StringVar(&flags.gtfPath, "gtf", "", "Gene annotation in GTF format; gzipped files are accepted")
	flag.StringVar(&flags.referencePath, "reference", "", "Genome FASTA; required unless -pseudo-bam is given")
	flag.StringVar(&flags.genomeBAMPath, "bam", "", "Genome alignment BAM, sorted and indexed")
	flag.StringVar(&flags.pseudoBAMPath, "pseudo-bam", "", "Pre-built alignment against the pseudo-circular reference; skips the alignment stage")
	flag.StringVar(&flags.r1, "r1", "", "FASTQ file containing R1 reads")
	flag.StringVar(&flags.r2, "r2", "", "FASTQ file containing R2 reads")
	flag.StringVar(&flags.outPrefix, "o", "", "Output path prefix")
	flag.IntVar(&flags.threads, "threads", 0, "Maximum number of simultaneous jobs; 0 = runtime.NumCPU()")
	flag.IntVar(&flags.anchor, "anchor", 5, "Number of bases a junction read must cover on each side of a junction site")
	flag.StringVar(&flags.hisat2, "hisat2", "hisat2", "Path to the hisat2 executable")
	flag.StringVar(&flags.hisat2Build, "hisat2-build", "hisat2-build", "Path to the hisat2-build executable")
	flag.StringVar(&flags.samtools, "samtools", "samtools", "Path to the samtools executable")
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flags.bedPath == "" || flags.gtfPath == "" || flags.genomeBAMPath == "" || flags.outPrefix == "" {
		log.Fatalf("-bed, -gtf, -bam and -o are required")
	}
	if flags.pseudoBAMPath == "" && (flags.referencePath == "" || flags.r1 == "" || flags.r2 == "") {
		log.Fatalf("either -pseudo-bam or all of -reference, -r1 and -r2 are required")
	}
	if flags.anchor < 1 {
		log.Fatalf("-anchor must be positive")
	}
	if flags.threads <= 0 {
		flags.threads = runtime.NumCPU()
	}

	ctx := vcontext.Background()
	if err := run(ctx, flags); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("all done")
}
