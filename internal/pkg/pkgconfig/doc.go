// Package pkgconfig provides a small abstraction for reading configuration values.
//
// Business code depends on the Config interface so it stays easy to test and
// does not care where values come from. The Viper implementation layers, from
// lowest to highest precedence: defaults registered in code, the YAML file and
// GOSAMPLING_* environment variables.
package pkgconfig
