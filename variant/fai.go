package variant

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Contig is one reference sequence.
type Contig struct {
	Name   string
	Length int
}

// ReadFai reads the contigs of a samtools .fai index in file order.
func ReadFai(path string) ([]Contig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	contigs, err := ParseFai(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return contigs, nil
}

// ParseFai parses .fai lines: name, length, offset, line bases, line width.
// Only the first two columns are used.
func ParseFai(r io.Reader) ([]Contig, error) {
	var contigs []Contig
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 2 {
			return nil, fmt.Errorf("line %d: expected at least 2 columns, got %d", line, len(cols))
		}
		length, err := strconv.Atoi(cols[1])
		if err != nil || length < 0 {
			return nil, fmt.Errorf("line %d: invalid length %q", line, cols[1])
		}
		contigs = append(contigs, Contig{Name: cols[0], Length: length})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return contigs, nil
}

// WriteLengths writes "name<TAB>length" lines, the genome file format of
// window tools.
func WriteLengths(w io.Writer, contigs []Contig) error {
	bw := bufio.NewWriter(w)
	for _, c := range contigs {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", c.Name, c.Length); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLengths reads a file written by WriteLengths.
func ReadLengths(path string) ([]Contig, error) {
	return ReadFai(path)
}
