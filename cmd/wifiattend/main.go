// wifiattend - Wi-Fi attendance BSSID registry
//
// This is the main entry point for the registry service. It maps Wi-Fi
// access point identifiers (BSSIDs) to facilities so that attendance clients
// can infer where a user is from the access point they are connected to.
//
// Commands:
//
//	wifiattend [serve]   run the HTTP API (default)
//	wifiattend list      print every BSSID grouped by facility
//	wifiattend reset     drop the registry table
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// getConfigPath returns the config path from WIFIATTEND_CONFIG, falling
// back to defaultConfigPath.
func getConfigPath() string {
	if path := os.Getenv("WIFIATTEND_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
