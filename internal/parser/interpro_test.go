package parser

import (
	"strings"
	"testing"
)

const sampleInterProEntryList = `IPR000001	Domain	Kringle
IPR000002	Family	Insulin family
`

const sampleInterProMatchTable = "P01308\tabc123\t110\tPfam\tPF00049\tInsulin domain\t1\t89\t1.2e-30\tT\t01-01-2024\tIPR000002\tInsulin family\n" +
	"P02768\tdef456\t609\tPfam\tPF00273\tAlbumin domain\t1\t194\t3.4e-40\tT\t01-01-2024\tIPR000001\tKringle\n"

func TestInterProParserEntryList(t *testing.T) {
	p := NewInterProParser()
	count, ok, err := p.Count(strings.NewReader(sampleInterProEntryList))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if !ok || count != 2 {
		t.Fatalf("got count %d ok=%v, want 2 true", count, ok)
	}

	records, malformed, err := p.ParseRange(strings.NewReader(sampleInterProEntryList), 0, 2)
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if len(malformed) != 0 {
		t.Errorf("got %d malformed, want 0", len(malformed))
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].RecordType != "interpro_entry" {
		t.Errorf("got record type %q, want interpro_entry", records[0].RecordType)
	}
	if records[0].RecordIdentifier != "ipr000001" {
		t.Errorf("got identifier %q, want ipr000001", records[0].RecordIdentifier)
	}
}

func TestInterProParserMatchTable(t *testing.T) {
	p := NewInterProParser()
	count, ok, err := p.Count(strings.NewReader(sampleInterProMatchTable))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if !ok || count != 2 {
		t.Fatalf("got count %d ok=%v, want 2 true", count, ok)
	}

	records, malformed, err := p.ParseRange(strings.NewReader(sampleInterProMatchTable), 0, 2)
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if len(malformed) != 0 {
		t.Errorf("got %d malformed, want 0", len(malformed))
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].RecordType != "interpro_match" {
		t.Errorf("got record type %q, want interpro_match", records[0].RecordType)
	}
	if records[0].RecordIdentifier != "ipr000002:p01308" {
		t.Errorf("got identifier %q, want ipr000002:p01308", records[0].RecordIdentifier)
	}
}
