// Package cli provides the manifestctl command-line interface.
//
// # Overview
//
// This package implements the `manifestctl` tool for checking plugin
// manifests locally, inspecting query traces on a running server and
// reading persisted usage counters.
//
// # Commands
//
// group: Aggregate a manifest file and print the categories
//
//	manifestctl group \
//		--file plugins.yaml \
//		--sort usage \
//		--format json
//
// validate: Decode a manifest and report the first invalid record
//
//	manifestctl validate --file plugins.json
//
// trace: Fetch a stored query trace
//
//	manifestctl trace \
//		--server http://localhost:8080 \
//		--id 3f0c1e52-7d5a-4f8e-9a51-0f6d2b7c9e11
//
// usage: Print usage counters, most used first
//
//	manifestctl usage --backend sqlite --dsn file:neuronote-usage.db
//	manifestctl usage --backend redis --dsn redis://localhost:6379/0
//
// # Related Packages
//
//   - pkg/manifest: Decoding and aggregation
//   - pkg/usage: Usage stores
package cli
