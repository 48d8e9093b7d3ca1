package parser

import (
	"bufio"
	"io"
	"strings"
)

// GenBankParser parses GenBank flat files: LOCUS/FEATURES/ORIGIN blocks
// terminated by "//", producing genomic_sequence records. Record
// identifiers are lowercased {accession}.{version}. Grounded on the same
// tag-block idiom as the UniProt parser.
type GenBankParser struct{}

// NewGenBankParser constructs the GenBank flat-file parser.
func NewGenBankParser() *GenBankParser { return &GenBankParser{} }

func (p *GenBankParser) SourceType() string       { return "genomic_sequence" }
func (p *GenBankParser) OutputRecordType() string { return "genomic_sequence" }
func (p *GenBankParser) RecordFormats() []string  { return []string{"json", "fasta"} }

func scanGenBankBlocks(r io.Reader) ([][]string, error) {
	reader, err := transparentReader(r)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var blocks [][]string
	var current []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "//" {
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

func (p *GenBankParser) Count(r io.Reader) (int64, bool, error) {
	blocks, err := scanGenBankBlocks(r)
	if err != nil {
		return 0, false, err
	}
	return int64(len(blocks)), true, nil
}

func (p *GenBankParser) ParseRange(r io.Reader, startOffset, endOffset int64) ([]Record, []MalformedRecord, error) {
	blocks, err := scanGenBankBlocks(r)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	var malformed []MalformedRecord
	for i, block := range blocks {
		if int64(i) < startOffset || int64(i) >= endOffset {
			continue
		}
		rec, err := decodeGenBankBlock(block, i)
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

func decodeGenBankBlock(lines []string, ordinal int) (Record, error) {
	data := map[string]interface{}{}
	var accession, version, organism, sequence string
	var section string

	for _, line := range lines {
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "LOCUS"):
			fields := strings.Fields(line)
			if len(fields) > 1 {
				data["locus"] = fields[1]
			}
			section = ""
		case strings.HasPrefix(upper, "ACCESSION"):
			fields := strings.Fields(line)
			if len(fields) > 1 {
				accession = fields[1]
			}
			section = ""
		case strings.HasPrefix(upper, "VERSION"):
			fields := strings.Fields(line)
			if len(fields) > 1 {
				version = fields[1]
			}
			section = ""
		case strings.HasPrefix(upper, "SOURCE"):
			organism = strings.TrimSpace(strings.TrimPrefix(line, "SOURCE"))
			section = ""
		case strings.HasPrefix(upper, "FEATURES"):
			section = "features"
		case strings.HasPrefix(upper, "ORIGIN"):
			section = "origin"
		default:
			if section == "origin" {
				sequence += extractSequenceResidues(line)
			}
		}
	}

	if accession == "" {
		return Record{}, &MalformedRecord{LineNumber: ordinal, Reason: "missing ACCESSION line"}
	}
	identifier := accession
	if version != "" {
		identifier = version
	}

	data["accession"] = accession
	data["version"] = version
	data["organism"] = organism
	data["sequence"] = sequence

	rec := NewRecord("genomic_sequence", identifier, data)
	return rec.WithSequence(sequence), nil
}

// extractSequenceResidues strips the leading position number and spaces
// from an ORIGIN block line, leaving just the nucleotide residues.
func extractSequenceResidues(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields[1:] {
		b.WriteString(f)
	}
	return b.String()
}

func (p *GenBankParser) Format(rec Record, formatName string) ([]byte, string, error) {
	switch formatName {
	case "fasta":
		seq, _ := rec.RecordData["sequence"].(string)
		organism, _ := rec.RecordData["organism"].(string)
		out := ">" + rec.RecordIdentifier + " " + organism + "\n" + wrapSequence(seq, 70)
		return []byte(out), "text/x-fasta", nil
	default:
		return formatJSON(rec)
	}
}
