// Package main provides the HakiMeet CLI tool.
//
// Usage:
//
//	hakimeet [flags] <command> [args]
//
// Commands:
//
//	realtime    - Talk to the Doubao realtime dialogue service
//	serve       - Run the websocket bridge for browser clients
//	config      - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.hakimeet/hakimeet/
//	Use 'hakimeet config' commands to manage contexts. DOUBAO_VOICE_*
//	environment variables fill anything a context leaves empty.
package main

import (
	"fmt"
	"os"

	"github.com/ultralan/HakiMeet/cmd/hakimeet/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
