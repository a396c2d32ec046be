package variant

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DepthThreshold returns mean + 5 × population standard deviation of
// depths. The value is not rounded. An empty input yields 0.
func DepthThreshold(depths []float64) float64 {
	if len(depths) == 0 {
		return 0
	}
	var sum float64
	for _, d := range depths {
		sum += d
	}
	mean := sum / float64(len(depths))
	var sq float64
	for _, d := range depths {
		sq += (d - mean) * (d - mean)
	}
	return mean + 5*math.Sqrt(sq/float64(len(depths)))
}

// FormatThreshold renders a threshold in the shortest exact decimal form.
func FormatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadDepths returns INFO/DP of every data line of a VCF stream. Records
// without DP are ignored.
func ReadDepths(r io.Reader) ([]float64, error) {
	var depths []float64
	err := scanRecords(r, nil, func(rec Record, _ string) error {
		if dp, ok := rec.Depth(); ok {
			depths = append(depths, dp)
		}
		return nil
	})
	return depths, err
}

// SelectSnps copies header lines and SNP records from r to w.
func SelectSnps(w io.Writer, r io.Reader) (int, error) {
	return copyRecords(w, r, Record.IsSNP)
}

// FilterPass copies header lines and records whose FILTER is PASS.
func FilterPass(w io.Writer, r io.Reader) (int, error) {
	return copyRecords(w, r, Record.Passed)
}

func copyRecords(w io.Writer, r io.Reader, keep func(Record) bool) (int, error) {
	bw := bufio.NewWriter(w)
	kept := 0
	err := scanRecords(r, func(header string) error {
		_, err := fmt.Fprintln(bw, header)
		return err
	}, func(rec Record, line string) error {
		if !keep(rec) {
			return nil
		}
		kept++
		_, err := fmt.Fprintln(bw, line)
		return err
	})
	if err != nil {
		return kept, err
	}
	return kept, bw.Flush()
}

func scanRecords(r io.Reader, onHeader func(string) error, onRecord func(Record, string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if IsHeader(line) {
			if onHeader != nil {
				if err := onHeader(line); err != nil {
					return err
				}
			}
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if err := onRecord(rec, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
