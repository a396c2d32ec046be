package variant

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kbukum/varflow/errors"
)

// Window is a 1-based inclusive interval on one contig.
type Window struct {
	Contig string
	Start  int
	End    int
}

// String renders the region as "contig:start-end".
func (w Window) String() string {
	return fmt.Sprintf("%s:%d-%d", w.Contig, w.Start, w.End)
}

// Len returns the number of bases in the window.
func (w Window) Len() int { return w.End - w.Start + 1 }

// MakeWindows partitions every contig into consecutive windows of size
// bases. Each contig gets ceil(length/size) windows and the last one ends
// at the contig end.
func MakeWindows(contigs []Contig, size int) ([]Window, error) {
	if size < 1 {
		return nil, errors.Configuration("window", fmt.Sprintf("window size must be at least 1, got %d", size))
	}
	var windows []Window
	for _, c := range contigs {
		for start := 1; start <= c.Length; {
			end := c.Length
			if c.Length-start >= size {
				end = start + size - 1
			}
			windows = append(windows, Window{Contig: c.Name, Start: start, End: end})
			if end == c.Length {
				break
			}
			start = end + 1
		}
	}
	return windows, nil
}

// ParseWindow parses "contig:start-end". The contig name may contain ':'.
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(s)
	colon := strings.LastIndexByte(s, ':')
	if colon <= 0 {
		return Window{}, fmt.Errorf("invalid region %q", s)
	}
	bounds := strings.SplitN(s[colon+1:], "-", 2)
	if len(bounds) != 2 {
		return Window{}, fmt.Errorf("invalid region %q", s)
	}
	start, err1 := strconv.Atoi(bounds[0])
	end, err2 := strconv.Atoi(bounds[1])
	if err1 != nil || err2 != nil || start < 1 || end < start {
		return Window{}, fmt.Errorf("invalid region %q", s)
	}
	return Window{Contig: s[:colon], Start: start, End: end}, nil
}

// WriteWindows writes one region per line.
func WriteWindows(w io.Writer, windows []Window) error {
	bw := bufio.NewWriter(w)
	for _, win := range windows {
		if _, err := fmt.Fprintln(bw, win.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
