// agi-mcp: an MCP gateway to learning, coordination, skill evolution,
// goal planning, context synthesis and self-modification subsystems.
//
// Usage:
//
//	agi-mcp serve     # Start MCP server (stdio transport)
//	agi-mcp catalog   # Print every operation and its input schema
//	agi-mcp update    # Update to the latest version
//	agi-mcp version   # Print the version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
