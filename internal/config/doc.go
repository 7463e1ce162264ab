// Package config provides configuration structures and utilities for
// pixelproof. It defines the options for image acquisition, analyzer
// selection, pipeline execution, and report generation, along with the
// YAML file loading and validation that back them.
package config
