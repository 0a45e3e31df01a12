// Package config defines the immutable run configuration and its
// layered construction: defaults, then environment variables, then an
// optional YAML file, then CLI flags. Validation runs once after
// construction and is the program's only fatal error path.
package config
