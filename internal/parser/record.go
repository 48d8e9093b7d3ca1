package parser

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Record is the unit a Parser produces: {record_type, record_identifier
// (lowercased), record_data, content_md5, sequence_md5} per spec §4.2.
type Record struct {
	RecordType       string
	RecordIdentifier string
	RecordData       map[string]interface{}
	ContentMD5       string
	SequenceMD5      string // empty when the source type has no primary sequence
}

// MalformedRecord is the parser failure mode: the offending line and a
// human-readable reason. Parsers skip the record, return it alongside the
// good records, and continue; the ingestion Worker logs a warning for each.
type MalformedRecord struct {
	LineNumber int
	Reason     string
}

func (e *MalformedRecord) Error() string {
	return fmt.Sprintf("malformed record at line %d: %s", e.LineNumber, e.Reason)
}

// NewRecord builds a Record, lowercasing the identifier and computing
// content_md5 over a canonical serialization of data.
func NewRecord(recordType, identifier string, data map[string]interface{}) Record {
	return Record{
		RecordType:       recordType,
		RecordIdentifier: strings.ToLower(identifier),
		RecordData:       data,
		ContentMD5:       contentMD5(data),
	}
}

// WithSequence sets SequenceMD5 over the primary sequence content (amino
// acid or nucleotide residues), used by downstream deduplication.
func (r Record) WithSequence(sequence string) Record {
	r.SequenceMD5 = md5Hex(sequence)
	return r
}

func contentMD5(data map[string]interface{}) string {
	return md5Hex(canonicalize(data))
}

// ContentMD5 exposes the same canonical-serialization digest NewRecord uses,
// so a caller holding a previously-committed record's decoded data (e.g. the
// Versioning Engine's change detection) can recompute it for comparison
// without re-parsing the original upstream file.
func ContentMD5(data map[string]interface{}) string {
	return contentMD5(data)
}

// canonicalize renders data as a stable, sorted key=value representation so
// content_md5 is deterministic across runs (full JSON canonicalization is
// the Resolution Engine's concern; parsing only needs a stable digest here).
func canonicalize(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", data[k])
		b.WriteByte(';')
	}
	return b.String()
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
