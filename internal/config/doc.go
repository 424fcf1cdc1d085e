// Package config holds the daemon options: paths, dispatch policy, timeouts
// and the global option bitmask. Options load from a YAML file layered over
// defaults.
package config
