// Package config loads convo settings from YAML with ${VAR} expansion and
// CONVO_* environment overrides.
package config
