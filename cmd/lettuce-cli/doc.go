// Package main provides the entry point for lettuce-cli.
//
// The CLI tool provides command-line access to a cluster for:
//
//   - Sending ad-hoc commands with slot-aware routing
//   - Inspecting the discovered topology and slot ranges
//   - Reachability checks
//
// Usage:
//
//	lettuce-cli [command] [flags]
//	lettuce-cli --seeds 10.0.0.1:7000 topology
//	lettuce-cli send GET mykey
package main
