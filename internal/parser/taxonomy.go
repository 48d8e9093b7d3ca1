package parser

import (
	"bufio"
	"io"
	"strings"
)

// TaxonomyParser parses NCBI taxonomy nodes.dmp/names.dmp-shaped,
// pipe-delimited fixed-column records. One line is one record: there is no
// multi-line grouping, so Count/ParseRange work directly over line
// ordinals.
type TaxonomyParser struct{}

// NewTaxonomyParser constructs the NCBI taxonomy dump parser.
func NewTaxonomyParser() *TaxonomyParser { return &TaxonomyParser{} }

func (p *TaxonomyParser) SourceType() string       { return "taxonomy" }
func (p *TaxonomyParser) OutputRecordType() string { return "taxonomy" }
func (p *TaxonomyParser) RecordFormats() []string  { return []string{"json"} }

var taxonomyNodeColumns = []string{
	"tax_id", "parent_tax_id", "rank", "embl_code", "division_id",
}

func scanTaxonomyLines(r io.Reader) ([]string, error) {
	reader, err := transparentReader(r)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func (p *TaxonomyParser) Count(r io.Reader) (int64, bool, error) {
	lines, err := scanTaxonomyLines(r)
	if err != nil {
		return 0, false, err
	}
	return int64(len(lines)), true, nil
}

func (p *TaxonomyParser) ParseRange(r io.Reader, startOffset, endOffset int64) ([]Record, []MalformedRecord, error) {
	lines, err := scanTaxonomyLines(r)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	var malformed []MalformedRecord
	for i, line := range lines {
		if int64(i) < startOffset || int64(i) >= endOffset {
			continue
		}
		rec, err := decodeTaxonomyLine(line, i)
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

func decodeTaxonomyLine(line string, ordinal int) (Record, error) {
	fields := strings.Split(line, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 2 || fields[0] == "" {
		return Record{}, &MalformedRecord{LineNumber: ordinal, Reason: "expected at least tax_id|parent_tax_id"}
	}

	data := map[string]interface{}{}
	for i, col := range taxonomyNodeColumns {
		if i < len(fields) {
			data[col] = fields[i]
		}
	}
	return NewRecord("taxonomy", fields[0], data), nil
}

func (p *TaxonomyParser) Format(rec Record, formatName string) ([]byte, string, error) {
	return formatJSON(rec)
}
