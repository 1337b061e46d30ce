// Package config defines the warden configuration structure and its
// loading, defaulting, and validation.
//
// Configuration is loaded once at startup from a YAML file, validated as a
// whole, and passed by reference. Invalid combinations (non-positive caps,
// unknown strategies, out-of-range reset hours) are rejected at load time,
// never at call time.
package config
