package parser

import (
	"bufio"
	"compress/gzip"
	"io"
)

// transparentReader peeks the stream for a gzip magic header and
// transparently wraps it with a gzip.Reader when present, per spec §4.2's
// "parsers handle gzip transparently" requirement.
func transparentReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		if err == io.EOF {
			return br, nil
		}
		return nil, err
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}
