// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Watcher re-reads the file when it changes so the connection list can be
// reloaded without a restart.
package config
