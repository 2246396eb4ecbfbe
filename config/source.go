package config

// Source indicates where a configuration value came from.
type Source string

// Configuration source constants.
const (
	// SourceDefault indicates the value is a built-in default.
	SourceDefault Source = "default"

	// SourceGlobal indicates the value came from ~/.config/guaclink/config.yaml.
	SourceGlobal Source = "global"

	// SourceLocal indicates the value came from .guaclink.yaml.
	SourceLocal Source = "local"

	// SourceDotEnv indicates the value came from a .env file.
	SourceDotEnv Source = "dotenv"

	// SourceEnv indicates the value came from an environment variable.
	SourceEnv Source = "env"

	// SourceFlag indicates the value was set via command-line flag.
	SourceFlag Source = "flag"
)
