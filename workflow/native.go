package workflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/executor"
	"github.com/kbukum/varflow/variant"
)

func registerNatives(reg *executor.Registry) {
	reg.Register(KindStageGenome, executor.Native(stageGenome))
	reg.Register(KindGenomeLengths, executor.Native(genomeLengths))
	reg.Register(KindMakeWindows, executor.Native(makeWindows))
	reg.Register(KindMergeVcf, executor.Native(mergeVcf))
	reg.Register(KindDepthThreshold, executor.Native(depthThreshold))
	reg.Register(KindPass, executor.Native(pass))
}

// stageGenome links the reference into the genome stage. Indexes are
// built next to the link.
func stageGenome(_ context.Context, inv executor.Invocation) error {
	src, err := filepath.Abs(inv.Inputs[0])
	if err != nil {
		return err
	}
	dst := inv.OutputPaths()[0]
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(src, dst)
}

func genomeLengths(_ context.Context, inv executor.Invocation) error {
	contigs, err := variant.ReadFai(inv.Inputs[0])
	if err != nil {
		return err
	}
	return writeOutput(inv.OutputPaths()[0], func(w io.Writer) error {
		return variant.WriteLengths(w, contigs)
	})
}

func makeWindows(_ context.Context, inv executor.Invocation) error {
	size, err := strconv.Atoi(inv.Param(ParamWindow))
	if err != nil {
		return errors.Configuration("window", fmt.Sprintf("invalid window size %q", inv.Param(ParamWindow)))
	}
	contigs, err := variant.ReadLengths(inv.Inputs[0])
	if err != nil {
		return err
	}
	windows, err := variant.MakeWindows(contigs, size)
	if err != nil {
		return err
	}
	return writeOutput(inv.OutputPaths()[0], func(w io.Writer) error {
		return variant.WriteWindows(w, windows)
	})
}

// mergeVcf expects its inputs in window order.
func mergeVcf(_ context.Context, inv executor.Invocation) error {
	return writeOutput(inv.OutputPaths()[0], func(w io.Writer) error {
		_, err := variant.MergeVcf(w, inv.Inputs)
		return err
	})
}

func depthThreshold(_ context.Context, inv executor.Invocation) error {
	f, err := os.Open(inv.Inputs[0])
	if err != nil {
		return err
	}
	defer f.Close()
	depths, err := variant.ReadDepths(f)
	if err != nil {
		return err
	}
	threshold := variant.DepthThreshold(depths)
	return writeOutput(inv.OutputPaths()[0], func(w io.Writer) error {
		_, err := fmt.Fprintln(w, variant.FormatThreshold(threshold))
		return err
	})
}

func pass(_ context.Context, inv executor.Invocation) error {
	f, err := os.Open(inv.Inputs[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return writeOutput(inv.OutputPaths()[0], func(w io.Writer) error {
		_, err := variant.FilterPass(w, f)
		return err
	})
}

// readThreshold parses a file written by depthThreshold.
func readThreshold(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}

// writeOutput writes path atomically through a temporary file.
func writeOutput(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
