package config

import _ "embed"

// DefaultConfigYAML is the built-in configuration every deployment starts from.
//
//go:embed default.yaml
var DefaultConfigYAML []byte
