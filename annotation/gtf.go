// Package annotation indexes gene and exon features from a GTF file and
// classifies circRNA intervals against them.
package annotation

import (
	"fmt"
	"strings"
)

// AttrError reports a missing GTF attribute or a failed annotation
// lookup.
type AttrError struct {
	Key string
	Msg string
}

func (e *AttrError) Error() string {
	if e.Key == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Msg)
}

// Attributes holds the key/value pairs of GTF column 9.
type Attributes map[string]string

// GeneID returns the gene_id attribute.
func (a Attributes) GeneID() (string, error) {
	v, ok := a["gene_id"]
	if !ok {
		return "", &AttrError{Key: "gene_id", Msg: "missing attribute"}
	}
	return v, nil
}

// GeneName returns the gene_name attribute.
func (a Attributes) GeneName() (string, error) {
	v, ok := a["gene_name"]
	if !ok {
		return "", &AttrError{Key: "gene_name", Msg: "missing attribute"}
	}
	return v, nil
}

// GeneType returns the gene_type attribute, falling back to
// gene_biotype for Ensembl-style files.
func (a Attributes) GeneType() (string, error) {
	if v, ok := a["gene_type"]; ok {
		return v, nil
	}
	if v, ok := a["gene_biotype"]; ok {
		return v, nil
	}
	return "", &AttrError{Key: "gene_type", Msg: "missing attribute (no gene_type or gene_biotype)"}
}

// Feature is one gene or exon row of a GTF file. Start and End are
// 1-based and inclusive.
type Feature struct {
	Chrom  string
	Source string
	Kind   string
	Start  int
	End    int
	Strand byte
	Attrs  Attributes
}

// parseAttributes parses GTF column 9. Clauses are separated by ';',
// the key ends at the first whitespace run, and values are unquoted.
// Clauses without a value are ignored.
func parseAttributes(s string) Attributes {
	attrs := Attributes{}
	for _, clause := range strings.Split(s, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		sep := strings.IndexAny(clause, " \t")
		if sep < 0 {
			continue
		}
		key := clause[:sep]
		val := strings.Trim(strings.TrimSpace(clause[sep+1:]), "\"")
		attrs[key] = val
	}
	return attrs
}
