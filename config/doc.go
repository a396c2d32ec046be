// Package config provides configuration loading and validation for varflow.
//
// It uses Viper to merge, in increasing priority: built-in defaults, a YAML
// config file, a .env file, VARFLOW_* environment variables and command-line
// flags. Nested keys map to environment variables by replacing dots with
// underscores (tools.bwa → VARFLOW_TOOLS_BWA).
//
// # Usage
//
//	var cfg config.PipelineConfig
//	err := config.LoadConfig("varflow", &cfg,
//	    config.WithDefaults(config.Defaults()),
//	    config.WithFlags(flags))
package config
