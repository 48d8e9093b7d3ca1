package parser

import (
	"strings"
	"testing"
)

const sampleGenBankRecord = `LOCUS       NM_000207               464 bp    mRNA    linear   PRI 01-JAN-2024
ACCESSION   NM_000207
VERSION     NM_000207.3
SOURCE      Homo sapiens (human)
FEATURES             Location/Qualifiers
     source          1..464
ORIGIN
        1 agccctccag gacaggctgc atcagaagag gccatcaagc agatcactgt ccttctgcca
       61 tggccctgtg gatgcgcctc ctgcccctgc tggcgctgct ggccctctgg ggacctgacc
//
`

func TestGenBankParserCountAndParse(t *testing.T) {
	p := NewGenBankParser()
	count, ok, err := p.Count(strings.NewReader(sampleGenBankRecord))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if !ok || count != 1 {
		t.Fatalf("got count %d ok=%v, want 1 true", count, ok)
	}

	records, malformed, err := p.ParseRange(strings.NewReader(sampleGenBankRecord), 0, 1)
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if len(malformed) != 0 {
		t.Errorf("got %d malformed, want 0", len(malformed))
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].RecordIdentifier != "nm_000207.3" {
		t.Errorf("got identifier %q, want nm_000207.3", records[0].RecordIdentifier)
	}
	if records[0].SequenceMD5 == "" {
		t.Error("expected non-empty sequence_md5")
	}
	seq, _ := records[0].RecordData["sequence"].(string)
	if !strings.HasPrefix(seq, "agccctccag") {
		t.Errorf("got sequence %q, expected it to start with agccctccag", seq)
	}
}
