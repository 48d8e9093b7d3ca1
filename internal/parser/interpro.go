package parser

import (
	"io"
	"strings"
)

// InterProParser parses either InterPro's tab-separated match table or its
// entry metadata list; each input is one or the other, told apart by column
// count (any line with more than three columns marks a match table), and the
// two are not joined. Both are line-oriented with no multi-line grouping.
type InterProParser struct{}

// NewInterProParser constructs the InterPro TSV parser.
func NewInterProParser() *InterProParser { return &InterProParser{} }

func (p *InterProParser) SourceType() string       { return "interpro_entry" }
func (p *InterProParser) OutputRecordType() string { return "interpro_entry" }
func (p *InterProParser) RecordFormats() []string  { return []string{"json"} }

// entryListColumns is the InterPro entry-list format: ENTRY_AC, ENTRY_TYPE,
// ENTRY_NAME.
var entryListColumns = []string{"entry_ac", "entry_type", "entry_name"}

// matchColumns is the InterPro match-table format: PROTEIN_AC, MD5,
// LENGTH, ANALYSIS, SIGNATURE_AC, SIGNATURE_DESC, START, STOP, SCORE,
// STATUS, DATE, INTERPRO_AC, INTERPRO_DESC.
var matchColumns = []string{
	"protein_ac", "md5", "length", "analysis", "signature_ac", "signature_desc",
	"start", "stop", "score", "status", "date", "interpro_ac", "interpro_desc",
}

func (p *InterProParser) scanLines(r io.Reader) ([]string, bool, error) {
	lines, err := readAllLines(r)
	if err != nil {
		return nil, false, err
	}

	var filtered []string
	isEntryList := true
	for _, line := range lines {
		if line == "" {
			continue
		}
		filtered = append(filtered, line)
		fields := strings.Split(line, "\t")
		if len(fields) > 3 {
			isEntryList = false
		}
	}
	return filtered, isEntryList, nil
}

func (p *InterProParser) Count(r io.Reader) (int64, bool, error) {
	lines, _, err := p.scanLines(r)
	if err != nil {
		return 0, false, err
	}
	return int64(len(lines)), true, nil
}

func (p *InterProParser) ParseRange(r io.Reader, startOffset, endOffset int64) ([]Record, []MalformedRecord, error) {
	lines, isEntryList, err := p.scanLines(r)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	var malformed []MalformedRecord
	for i, line := range lines {
		if int64(i) < startOffset || int64(i) >= endOffset {
			continue
		}
		var rec Record
		var decodeErr error
		if isEntryList {
			rec, decodeErr = decodeInterProEntryLine(line, i)
		} else {
			rec, decodeErr = decodeInterProMatchLine(line, i)
		}
		if decodeErr != nil {
			if mr, ok := decodeErr.(*MalformedRecord); ok {
				malformed = append(malformed, *mr)
				continue
			}
			return nil, nil, decodeErr
		}
		records = append(records, rec)
	}
	return records, malformed, nil
}

func decodeInterProEntryLine(line string, ordinal int) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 || fields[0] == "" {
		return Record{}, &MalformedRecord{LineNumber: ordinal, Reason: "entry list line missing entry_ac"}
	}
	data := map[string]interface{}{}
	for i, col := range entryListColumns {
		if i < len(fields) {
			data[col] = fields[i]
		}
	}
	return NewRecord("interpro_entry", fields[0], data), nil
}

func decodeInterProMatchLine(line string, ordinal int) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 12 || fields[0] == "" || fields[11] == "" {
		return Record{}, &MalformedRecord{LineNumber: ordinal, Reason: "match line missing protein_ac or interpro_ac"}
	}
	data := map[string]interface{}{}
	for i, col := range matchColumns {
		if i < len(fields) {
			data[col] = fields[i]
		}
	}
	identifier := fields[11] + ":" + fields[0]
	return NewRecord("interpro_match", identifier, data), nil
}

func (p *InterProParser) Format(rec Record, formatName string) ([]byte, string, error) {
	return formatJSON(rec)
}
