package parser

import (
	"bufio"
	"io"
	"strings"
)

// GOTermParser parses both the GO OBO term-definition format and the GAF
// 2.2 tab-separated annotation format, registered together under the
// go_term source_type. The format is sniffed from the content (a tab on the
// first non-comment line means GAF), and each Record's record_type follows
// it (go_term for OBO terms, go_annotation for GAF lines);
// OutputRecordType always reports go_term.
type GOTermParser struct{}

// NewGOTermParser constructs the combined OBO/GAF parser.
func NewGOTermParser() *GOTermParser { return &GOTermParser{} }

func (p *GOTermParser) SourceType() string       { return "go_term" }
func (p *GOTermParser) OutputRecordType() string { return "go_term" }
func (p *GOTermParser) RecordFormats() []string  { return []string{"json"} }

func readAllLines(r io.Reader) ([]string, error) {
	reader, err := transparentReader(r)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// isGAF reports whether the content looks like tab-separated GAF 2.2
// rather than OBO stanzas.
func isGAF(lines []string) bool {
	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		return strings.Contains(line, "\t")
	}
	return false
}

func (p *GOTermParser) scanUnits(r io.Reader) (obo [][]string, gaf []string, err error) {
	lines, err := readAllLines(r)
	if err != nil {
		return nil, nil, err
	}
	if isGAF(lines) {
		for _, line := range lines {
			if line == "" || strings.HasPrefix(line, "!") {
				continue
			}
			gaf = append(gaf, line)
		}
		return nil, gaf, nil
	}

	var current []string
	inTerm := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "[Term]" {
			if inTerm && len(current) > 0 {
				obo = append(obo, current)
			}
			current = nil
			inTerm = true
			continue
		}
		if trimmed == "" {
			if inTerm && len(current) > 0 {
				obo = append(obo, current)
			}
			current = nil
			inTerm = false
			continue
		}
		if inTerm {
			current = append(current, trimmed)
		}
	}
	if inTerm && len(current) > 0 {
		obo = append(obo, current)
	}
	return obo, nil, nil
}

func (p *GOTermParser) Count(r io.Reader) (int64, bool, error) {
	obo, gaf, err := p.scanUnits(r)
	if err != nil {
		return 0, false, err
	}
	if gaf != nil {
		return int64(len(gaf)), true, nil
	}
	return int64(len(obo)), true, nil
}

func (p *GOTermParser) ParseRange(r io.Reader, startOffset, endOffset int64) ([]Record, []MalformedRecord, error) {
	obo, gaf, err := p.scanUnits(r)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	var malformed []MalformedRecord

	if gaf != nil {
		for i, line := range gaf {
			if int64(i) < startOffset || int64(i) >= endOffset {
				continue
			}
			rec, err := decodeGAFLine(line, i)
			if err != nil {
				if mr, ok := err.(*MalformedRecord); ok {
					malformed = append(malformed, *mr)
					continue
				}
				return nil, nil, err
			}
			records = append(records, rec)
		}
		return records, malformed, nil
	}

	for i, stanza := range obo {
		if int64(i) < startOffset || int64(i) >= endOffset {
			continue
		}
		rec, err := decodeOBOStanza(stanza, i)
		if err != nil {
			if mr, ok := err.(*MalformedRecord); ok {
				malformed = append(malformed, *mr)
				continue
			}
			return nil, nil, err
		}
		records = append(records, rec)
	}
	return records, malformed, nil
}

func decodeOBOStanza(lines []string, ordinal int) (Record, error) {
	data := map[string]interface{}{}
	var id string
	var isObsolete bool

	for _, line := range lines {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "id":
			id = value
		case "name":
			data["name"] = value
		case "namespace":
			data["namespace"] = value
		case "def":
			data["definition"] = value
		case "is_a":
			parents, _ := data["is_a"].([]string)
			data["is_a"] = append(parents, strings.SplitN(value, " ", 2)[0])
		case "is_obsolete":
			isObsolete = value == "true"
		}
	}

	if id == "" {
		return Record{}, &MalformedRecord{LineNumber: ordinal, Reason: "OBO stanza missing id"}
	}
	data["id"] = id
	data["obsolete"] = isObsolete
	return NewRecord("go_term", id, data), nil
}

// gafColumns is the GAF 2.2 column layout (17 tab-separated fields).
var gafColumns = []string{
	"db", "db_object_id", "db_object_symbol", "qualifier", "go_id",
	"db_reference", "evidence_code", "with_from", "aspect",
	"db_object_name", "db_object_synonym", "db_object_type", "taxon",
	"date", "assigned_by", "annotation_extension", "gene_product_form_id",
}

func decodeGAFLine(line string, ordinal int) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 15 {
		return Record{}, &MalformedRecord{LineNumber: ordinal, Reason: "GAF line has fewer than 15 columns"}
	}

	data := map[string]interface{}{}
	for i, col := range gafColumns {
		if i < len(fields) {
			data[col] = fields[i]
		}
	}

	identifier := fields[1] + ":" + fields[4]
	return NewRecord("go_annotation", identifier, data), nil
}

func (p *GOTermParser) Format(rec Record, formatName string) ([]byte, string, error) {
	return formatJSON(rec)
}
