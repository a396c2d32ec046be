package variant

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/exascience/pargo/parallel"
)

// vcfPart is one input of MergeVcf split into header and data lines.
type vcfPart struct {
	header []string
	data   []string
	err    error
}

// MergeVcf concatenates the VCF files at paths into w. Header lines are
// written once, taken from the first input that has any, followed by the
// data lines of every input in the order of paths. Inputs are read in
// parallel.
func MergeVcf(w io.Writer, paths []string) (records int, err error) {
	if len(paths) == 0 {
		return 0, nil
	}
	parts := make([]vcfPart, len(paths))
	parallel.Range(0, len(paths), 0, func(low, high int) {
		for i := low; i < high; i++ {
			parts[i] = readVcfPart(paths[i])
		}
	})

	bw := bufio.NewWriter(w)
	headerDone := false
	for i, part := range parts {
		if part.err != nil {
			return 0, fmt.Errorf("merge %s: %w", paths[i], part.err)
		}
		if !headerDone && len(part.header) > 0 {
			for _, line := range part.header {
				fmt.Fprintln(bw, line)
			}
			headerDone = true
		}
	}
	for _, part := range parts {
		for _, line := range part.data {
			fmt.Fprintln(bw, line)
			records++
		}
	}
	return records, bw.Flush()
}

func readVcfPart(path string) vcfPart {
	f, err := os.Open(path)
	if err != nil {
		return vcfPart{err: err}
	}
	defer f.Close()

	var part vcfPart
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
		case IsHeader(line):
			part.header = append(part.header, line)
		default:
			part.data = append(part.data, line)
		}
	}
	part.err = scanner.Err()
	return part
}
