package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/varflow/errors"
)

type params struct {
	Genome    string `mapstructure:"genome" validate:"required"`
	Reads     string `mapstructure:"reads" validate:"required_without=ReadsFile"`
	ReadsFile string `mapstructure:"reads_file" validate:"required_without=Reads"`
	Window    int    `mapstructure:"window" validate:"gte=1"`
	Profile   string `mapstructure:"profile" validate:"oneof=local cluster"`
}

func TestValidateStruct_Valid(t *testing.T) {
	p := params{Genome: "g.fa", Reads: "*.fq", Window: 10, Profile: "local"}
	if err := ValidateStruct(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_MissingMandatory(t *testing.T) {
	err := ValidateStruct(params{Window: 1, Profile: "local"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.CodeOf(err) != errors.ErrCodeConfiguration {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
	fields := Fields(err)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"genome", "reads", "reads_file"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %s in %v", want, names)
		}
	}
	if !OnlyMissing(err) {
		t.Error("expected only missing-field problems")
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	err := ValidateStruct(params{Genome: "g", Reads: "r", Window: 0, Profile: "grid"})
	if err == nil {
		t.Fatal("expected error")
	}
	if OnlyMissing(err) {
		t.Error("invalid values are not missing values")
	}
	if !strings.Contains(err.Error(), "window: must be at least 1") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !strings.Contains(err.Error(), "profile: must be one of: local cluster") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestValidator_Programmatic(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "genome.fa")
	if err := os.WriteFile(file, []byte(">chr1\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		build   func(v *Validator)
		wantErr bool
	}{
		{"required ok", func(v *Validator) { v.Required("genome", "x") }, false},
		{"required blank", func(v *Validator) { v.Required("genome", "  ") }, true},
		{"min", func(v *Validator) { v.Min("threads", 0, 1) }, true},
		{"one of", func(v *Validator) { v.OneOf("profile", "local", []string{"local"}) }, false},
		{"file exists", func(v *Validator) { v.FileExists("genome", file) }, false},
		{"file missing", func(v *Validator) { v.FileExists("genome", filepath.Join(dir, "nope")) }, true},
		{"file is dir", func(v *Validator) { v.FileExists("genome", dir) }, true},
		{"custom", func(v *Validator) { v.Custom(false, "reads", "bad") }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New()
			tc.build(v)
			err := v.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidator_Merge(t *testing.T) {
	v := New()
	v.Merge(ValidateStruct(params{Window: 1, Profile: "local", Reads: "r"}))
	v.Min("threads", 0, 1)
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", v.Errors())
	}
	if OnlyMissing(v.Validate()) {
		t.Error("threads error is not a missing field")
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("ReadsFile"); got != "reads_file" {
		t.Errorf("expected reads_file, got %q", got)
	}
}
