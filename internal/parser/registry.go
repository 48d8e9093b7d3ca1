// Package parser implements the Record Parser Registry (C2): one parser
// per data source type, registered at bootstrap and looked up by
// source_type string (spec §4.2). The teacher's structures.go/xml_parser.go
// walk SRA XML tokens; these parsers walk line/stanza/tab-delimited tags
// instead, but keep the same "collection wrapper, then per-element decode"
// shape.
package parser

import (
	"io"

	bdperrors "github.com/nishad/bdp/internal/errors"
)

// Parser is the C2 contract: {source_type, output_record_type,
// record_formats[]}, count/parse_range/format.
type Parser interface {
	SourceType() string
	OutputRecordType() string
	RecordFormats() []string

	// Count returns a best-effort total record count, used to size work
	// unit partitions. ok is false when the format cannot be counted
	// cheaply; partitioning then creates a single whole-file byte_range
	// work unit rather than several sized ranges.
	Count(r io.Reader) (count int64, ok bool, err error)

	// ParseRange deterministically parses records whose ordinal position
	// (not byte offset) falls within [startOffset, endOffset). Repeated
	// calls on the same range yield the same records in the same order.
	ParseRange(r io.Reader, startOffset, endOffset int64) ([]Record, []MalformedRecord, error)

	// Format renders a record to a persistable representation.
	Format(rec Record, formatName string) (data []byte, contentType string, err error)
}

// registry holds parsers keyed by source_type, populated at bootstrap by
// Register calls from each concrete parser's package init or explicit
// wiring in cmd/bdp.
var registry = map[string]Parser{}

// Register adds a parser under its source_type. Re-registering the same
// source_type replaces the previous entry (used by tests).
func Register(p Parser) {
	registry[p.SourceType()] = p
}

// Get looks up the parser for a source_type.
func Get(sourceType string) (Parser, error) {
	p, ok := registry[sourceType]
	if !ok {
		return nil, bdperrors.E("parser.Get", bdperrors.KindValidation, "no parser registered for source_type "+sourceType)
	}
	return p, nil
}

// RegisterDefaults registers the five built-in parsers. Called once at
// program startup.
func RegisterDefaults() {
	Register(NewUniProtParser())
	Register(NewTaxonomyParser())
	Register(NewGenBankParser())
	Register(NewGOTermParser())
	Register(NewInterProParser())
}
