package parser

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	RegisterDefaults()

	for _, sourceType := range []string{"protein", "taxonomy", "genomic_sequence", "go_term", "interpro_entry"} {
		p, err := Get(sourceType)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", sourceType, err)
		}
		if p.SourceType() != sourceType {
			t.Errorf("got source type %q, want %q", p.SourceType(), sourceType)
		}
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	_, err := Get("not_a_real_source_type")
	if err == nil {
		t.Fatal("expected an error for an unregistered source_type")
	}
}
