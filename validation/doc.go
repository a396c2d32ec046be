// Package validation validates pipeline inputs before anything is scheduled.
//
// It supports struct tag validation (using the validator library) and
// programmatic checks with error collection. Both produce a
// CONFIGURATION_ERROR AppError whose "fields" detail lists every problem.
//
// # Struct Tag Validation
//
//	type Params struct {
//	    Genome string `mapstructure:"genome" validate:"required"`
//	    Window int    `mapstructure:"window" validate:"gte=1"`
//	}
//	err := validation.ValidateStruct(params)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.FileExists("genome", path)
//	err := v.Validate()
package validation
