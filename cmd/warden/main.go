// Warden is the resource-protection daemon for a document-generation
// service.
//
// It decides whether a caller may invoke an expensive, metered generation
// action (a rolling-window request limiter and a balance-based credit
// ledger behind one admission facade) and protects generated content at
// rest with envelope encryption.
//
// Usage:
//
//	# Start with the built-in configuration
//	warden run
//
//	# Start with a configuration file
//	warden run --config /etc/warden/config.yaml
//
//	# Validate a configuration without starting the server
//	warden run --dry-run
//
//	# Show version information
//	warden version
package main

func main() {
	Execute()
}
