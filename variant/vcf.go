package variant

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one VCF data line. Columns after INFO are kept verbatim.
type Record struct {
	Chrom  string
	Pos    int
	ID     string
	Ref    string
	Alt    []string
	Qual   string
	Filter string
	Info   map[string]string
	Rest   []string
}

// IsHeader reports whether line is a VCF meta or column header line.
func IsHeader(line string) bool { return strings.HasPrefix(line, "#") }

// ParseRecord parses a tab-separated VCF data line.
func ParseRecord(line string) (Record, error) {
	cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(cols) < 8 {
		return Record{}, fmt.Errorf("vcf: expected at least 8 columns, got %d", len(cols))
	}
	pos, err := strconv.Atoi(cols[1])
	if err != nil {
		return Record{}, fmt.Errorf("vcf: invalid position %q", cols[1])
	}
	rec := Record{
		Chrom:  cols[0],
		Pos:    pos,
		ID:     cols[2],
		Ref:    cols[3],
		Qual:   cols[5],
		Filter: cols[6],
		Info:   parseInfo(cols[7]),
		Rest:   cols[8:],
	}
	if cols[4] != "." {
		rec.Alt = strings.Split(cols[4], ",")
	}
	return rec, nil
}

func parseInfo(field string) map[string]string {
	info := make(map[string]string)
	if field == "." || field == "" {
		return info
	}
	for _, entry := range strings.Split(field, ";") {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			value = "true"
		}
		info[key] = value
	}
	return info
}

// Depth returns INFO/DP.
func (r Record) Depth() (float64, bool) {
	v, ok := r.Info["DP"]
	if !ok {
		return 0, false
	}
	dp, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return dp, true
}

// IsSNP reports whether every alternate allele is a single-base
// substitution.
func (r Record) IsSNP() bool {
	if len(r.Ref) != 1 || len(r.Alt) == 0 {
		return false
	}
	for _, alt := range r.Alt {
		if len(alt) != 1 || alt == "*" || alt == r.Ref {
			return false
		}
	}
	return true
}

// Passed reports whether the record passed all filters.
func (r Record) Passed() bool { return r.Filter == "PASS" }
