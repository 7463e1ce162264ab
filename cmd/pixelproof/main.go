// Package main provides the entry point for the pixelproof CLI.
//
// pixelproof is an image forensics tool. It verifies and acquires an
// image under chain of custody, runs a set of manipulation-detection
// analyzers against a working copy, and consolidates their findings
// into a single weighted report.
//
// Usage:
//
//	pixelproof scan <image-file>
//	pixelproof history
//	pixelproof compare <run-id> <run-id>
//
// See --help for all available options.
package main

// main is the entry point for pixelproof.
func main() {
	Execute()
}
