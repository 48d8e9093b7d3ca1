package parser

import (
	"strings"
	"testing"
)

const sampleTaxonomyDump = `9606	|	9605	|	species	|	HS	|	1	|
9605	|	207598	|	genus	|		|	1	|
1	|	1	|	no rank	|		|	8	|
`

func TestTaxonomyParserCountAndParse(t *testing.T) {
	p := NewTaxonomyParser()
	count, ok, err := p.Count(strings.NewReader(sampleTaxonomyDump))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if !ok || count != 3 {
		t.Fatalf("got count %d ok=%v, want 3 true", count, ok)
	}

	records, malformed, err := p.ParseRange(strings.NewReader(sampleTaxonomyDump), 0, 3)
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if len(malformed) != 0 {
		t.Errorf("got %d malformed, want 0", len(malformed))
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].RecordIdentifier != "9606" {
		t.Errorf("got identifier %q, want 9606", records[0].RecordIdentifier)
	}
	if records[0].RecordData["rank"] != "species" {
		t.Errorf("got rank %v, want species", records[0].RecordData["rank"])
	}
}
