package parser

import (
	"bufio"
	"io"
	"strings"
)

// UniProtParser parses the UniProt flat DAT format: line-oriented
// two-letter-tag records (ID, AC, DE, OS, SQ, ...) terminated by "//".
// Grounded on the teacher's tag-walking decoder style in xml_parser.go,
// adapted from XML-token walking to line-tag walking.
type UniProtParser struct{}

// NewUniProtParser constructs the UniProt DAT parser.
func NewUniProtParser() *UniProtParser { return &UniProtParser{} }

func (p *UniProtParser) SourceType() string       { return "protein" }
func (p *UniProtParser) OutputRecordType() string { return "protein" }
func (p *UniProtParser) RecordFormats() []string  { return []string{"json", "fasta"} }

// scanUniProtBlocks splits the input into "ID ... //" delimited entries,
// returning each entry's raw lines.
func scanUniProtBlocks(r io.Reader) ([][]string, error) {
	reader, err := transparentReader(r)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var blocks [][]string
	var current []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "//") {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks, scanner.Err()
}

func (p *UniProtParser) Count(r io.Reader) (int64, bool, error) {
	blocks, err := scanUniProtBlocks(r)
	if err != nil {
		return 0, false, err
	}
	return int64(len(blocks)), true, nil
}

func (p *UniProtParser) ParseRange(r io.Reader, startOffset, endOffset int64) ([]Record, []MalformedRecord, error) {
	blocks, err := scanUniProtBlocks(r)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	var malformed []MalformedRecord
	for i, block := range blocks {
		if int64(i) < startOffset || int64(i) >= endOffset {
			continue
		}
		rec, err := decodeUniProtBlock(block, i)
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

func decodeUniProtBlock(lines []string, ordinal int) (Record, error) {
	data := map[string]interface{}{}
	var accession, id, sequence string
	var inSeq bool

	for _, line := range lines {
		if len(line) < 2 {
			continue
		}
		tag := strings.TrimSpace(line[:2])
		rest := strings.TrimSpace(line[2:])

		switch tag {
		case "ID":
			id = strings.Fields(rest)[0]
			data["id"] = id
		case "AC":
			if accession == "" {
				accession = strings.TrimSuffix(strings.Fields(rest)[0], ";")
			}
			data["accession"] = accession
		case "DE":
			data["description"] = appendField(data["description"], rest)
		case "OS":
			data["organism"] = appendField(data["organism"], rest)
		case "OX":
			data["taxonomy_id"] = rest
		case "SQ":
			inSeq = true
		case "":
			if inSeq {
				sequence += strings.ReplaceAll(rest, " ", "")
			}
		}
	}

	if accession == "" {
		return Record{}, &MalformedRecord{LineNumber: ordinal, Reason: "missing AC line"}
	}
	data["sequence"] = sequence

	rec := NewRecord("protein", accession, data)
	return rec.WithSequence(sequence), nil
}

func appendField(existing interface{}, addition string) string {
	if existing == nil {
		return addition
	}
	return existing.(string) + " " + addition
}

func (p *UniProtParser) Format(rec Record, formatName string) ([]byte, string, error) {
	switch formatName {
	case "fasta":
		seq, _ := rec.RecordData["sequence"].(string)
		header, _ := rec.RecordData["description"].(string)
		out := ">" + rec.RecordIdentifier + " " + header + "\n" + wrapSequence(seq, 60)
		return []byte(out), "text/x-fasta", nil
	default:
		return formatJSON(rec)
	}
}

func wrapSequence(seq string, width int) string {
	var b strings.Builder
	for i := 0; i < len(seq); i += width {
		end := i + width
		if end > len(seq) {
			end = len(seq)
		}
		b.WriteString(seq[i:end])
		b.WriteByte('\n')
	}
	return b.String()
}
