// Package cli provides common CLI utilities for the hakimeet command.
//
// This package includes:
//   - Configuration management (contexts with DOUBAO_VOICE_* fallbacks)
//   - Output formatting (YAML, JSON, JSON lines, raw)
//   - Request file loading (YAML/JSON)
//   - Terminal styles for dialogue transcripts
//
// Configuration is stored in ~/.hakimeet/<app>/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("hakimeet")
//
//	// Named context, or current context, or environment only
//	ctx, err := cfg.ResolveContextWithEnv(name)
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
