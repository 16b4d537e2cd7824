// Package bam provides coordinate and sharding helpers on top of the BAM
// and SAM packages in github.com/grailbio/hts.
package bam
