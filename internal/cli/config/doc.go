// Package config provides mtaa-cli settings stored in ~/.mtaa/cli.yaml.
//
// Values from the file act as defaults; flags and MTAA_ environment
// variables override them.
package config
