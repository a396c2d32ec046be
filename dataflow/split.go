package dataflow

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kbukum/varflow/dag"
)

// SplitLines reads the text file named by each value and emits its lines
// in chunks of by lines (by < 1 means 1). Blank lines are ignored.
func SplitLines(in *Channel[string], name string, by int) *Channel[string] {
	if by < 1 {
		by = 1
	}
	f := in.flow
	out := newChannel[string](f, name, dag.KindOperator, "splitLines")
	src := in.subscribe(f, name)
	f.start(name, func(ctx context.Context) (int, error) {
		defer out.close()
		return flatten(ctx, f, name, src, out, func(_ context.Context, path string) ([]string, error) {
			return readChunks(path, by)
		}), nil
	})
	return out
}

// SplitCsv reads the delimited file named by each value and emits one
// record per row. Rows starting with '#' and blank rows are skipped.
func SplitCsv(in *Channel[string], name string, sep rune) *Channel[[]string] {
	f := in.flow
	out := newChannel[[]string](f, name, dag.KindOperator, "splitCsv")
	src := in.subscribe(f, name)
	f.start(name, func(ctx context.Context) (int, error) {
		defer out.close()
		return flatten(ctx, f, name, src, out, func(_ context.Context, path string) ([][]string, error) {
			return readRecords(path, sep)
		}), nil
	})
	return out
}

func readChunks(path string, by int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var (
		chunks  []string
		current []string
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		current = append(current, line)
		if len(current) == by {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks, nil
}

func readRecords(path string, sep rune) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = sep
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		records = append(records, rec)
	}
}
