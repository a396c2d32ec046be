package workflow

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/kbukum/varflow/errors"
)

// ManifestSeparator separates the columns of a reads manifest:
// readname, left FASTQ, right FASTQ.
const ManifestSeparator = '\t'

// Ingestion is the validated input read set.
type Ingestion struct {
	ReadGroups []ReadGroup
	// Lanes is the number of read groups per sample.
	Lanes map[string]int
	// Manifest holds the manifest bytes the read groups were parsed from.
	// It is nil for glob input.
	Manifest []byte
}

// Samples returns the sample names in order of first appearance.
func (in *Ingestion) Samples() []string {
	var names []string
	seen := make(map[string]bool)
	for _, rg := range in.ReadGroups {
		if !seen[rg.Sample] {
			seen[rg.Sample] = true
			names = append(names, rg.Sample)
		}
	}
	return names
}

func newIngestion(groups []ReadGroup) (*Ingestion, error) {
	if len(groups) == 0 {
		return nil, errors.Configuration("reads", "no read pairs found")
	}
	in := &Ingestion{ReadGroups: groups, Lanes: make(map[string]int)}
	seen := make(map[string]bool)
	for _, rg := range groups {
		if seen[rg.ID] {
			return nil, errors.Configuration("reads", fmt.Sprintf("duplicate read group %q", rg.ID))
		}
		seen[rg.ID] = true
		in.Lanes[rg.Sample]++
	}
	return in, nil
}

// ParseManifest reads a tab-separated manifest. Lane numbers follow the
// record order, so the same file always yields the same read group IDs.
func ParseManifest(path string) (*Ingestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Configuration("reads_file", err.Error()).WithCause(err)
	}

	r := newManifestReader(bytes.NewReader(data))
	var groups []ReadGroup
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Configuration("reads_file", err.Error()).WithCause(err)
		}
		rg, err := readGroupFromRecord(len(groups), rec)
		if err != nil {
			return nil, err
		}
		groups = append(groups, rg)
	}
	in, err := newIngestion(groups)
	if err != nil {
		return nil, err
	}
	in.Manifest = data
	return in, nil
}

func newManifestReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ManifestSeparator
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

// readGroupFromRecord maps the index-th manifest record to a read group.
func readGroupFromRecord(index int, rec []string) (ReadGroup, error) {
	if len(rec) < 3 {
		return ReadGroup{}, errors.Configuration("reads_file",
			fmt.Sprintf("record %d: expected readname, left and right FASTQ, got %d columns", index+1, len(rec)))
	}
	name := strings.TrimSpace(rec[0])
	if name == "" {
		return ReadGroup{}, errors.Configuration("reads_file", fmt.Sprintf("record %d: empty readname", index+1))
	}
	return newReadGroup(name, index+1, strings.TrimSpace(rec[1]), strings.TrimSpace(rec[2])), nil
}

// GlobPairs finds read pairs matching pattern, which must contain one
// two-way alternation such as "data/*_{1,2}.fastq.gz". Files are paired
// by the text outside the alternation; the sample name is the base name
// of that text. Pairs are ordered by name.
func GlobPairs(pattern string) (*Ingestion, error) {
	pg, err := parsePairGlob(pattern)
	if err != nil {
		return nil, err
	}

	pairs := make(map[string]*[2]string)
	walkErr := filepath.WalkDir(pg.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		slashed := filepath.ToSlash(p)
		for side, g := range pg.sides {
			if !g.Match(slashed) {
				continue
			}
			key := strings.TrimSuffix(slashed, pg.tails[side])
			pair, ok := pairs[key]
			if !ok {
				pair = &[2]string{}
				pairs[key] = pair
			}
			pair[side] = p
		}
		return nil
	})
	if walkErr != nil {
		return nil, errors.Configuration("reads", walkErr.Error()).WithCause(walkErr)
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]ReadGroup, 0, len(keys))
	for i, k := range keys {
		pair := pairs[k]
		if pair[0] == "" || pair[1] == "" {
			return nil, errors.Configuration("reads", fmt.Sprintf("incomplete read pair for %q", k))
		}
		groups = append(groups, newReadGroup(path.Base(k), i+1, pair[0], pair[1]))
	}
	return newIngestion(groups)
}

type pairGlob struct {
	root  string
	sides [2]glob.Glob
	// tails are the literal suffixes that follow the pair key on each side.
	tails [2]string
}

func parsePairGlob(pattern string) (*pairGlob, error) {
	pattern = filepath.ToSlash(pattern)
	open := strings.IndexByte(pattern, '{')
	closeAt := strings.IndexByte(pattern, '}')
	if open < 0 || closeAt < open {
		return nil, errors.Configuration("reads", fmt.Sprintf("pattern %q needs a {left,right} alternation", pattern))
	}
	alts := strings.Split(pattern[open+1:closeAt], ",")
	if len(alts) != 2 {
		return nil, errors.Configuration("reads", fmt.Sprintf("pattern %q: alternation must have exactly two choices", pattern))
	}
	suffix := pattern[closeAt+1:]
	if strings.ContainsAny(suffix, "*?[{") || strings.Contains(suffix, "/") {
		return nil, errors.Configuration("reads", fmt.Sprintf("pattern %q: no wildcard may follow the alternation", pattern))
	}

	prefix := cleanDir(pattern[:open])
	lit := prefix[strings.LastIndexAny(prefix, "*?]/")+1:]

	pg := &pairGlob{root: globRoot(prefix)}
	for i, alt := range alts {
		g, err := glob.Compile(prefix+alt+suffix, '/')
		if err != nil {
			return nil, errors.Configuration("reads", fmt.Sprintf("pattern %q: %v", pattern, err)).WithCause(err)
		}
		pg.sides[i] = g
		pg.tails[i] = lit + alt + suffix
	}
	return pg, nil
}

// cleanDir cleans the wildcard-free directory part of prefix the way
// filepath.WalkDir reports paths, so "./data/*_" becomes "data/*_".
func cleanDir(prefix string) string {
	static := prefix
	if i := strings.IndexAny(prefix, "*?["); i >= 0 {
		static = prefix[:i]
	}
	cut := strings.LastIndexByte(static, '/')
	if cut < 0 {
		return prefix
	}
	dir, rest := path.Clean(prefix[:cut+1]), prefix[cut+1:]
	switch dir {
	case ".":
		return rest
	case "/":
		return "/" + rest
	}
	return dir + "/" + rest
}

// globRoot returns the directory part of pattern before its first
// wildcard.
func globRoot(prefix string) string {
	static := prefix
	if i := strings.IndexAny(prefix, "*?["); i >= 0 {
		static = prefix[:i]
	}
	dir := path.Dir(static + "x")
	if dir == "" {
		return "."
	}
	return filepath.FromSlash(dir)
}
