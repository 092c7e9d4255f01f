package cmd

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "fragmentd",
	Short: "Fragmentd is a shared data-fragment service",
	Long: `A service for small shared JSON data fragments: clients request a fragment,
an administrator approves it, and holders of the fragment secret can read,
write and live-stream it over a websocket.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// envOr returns the named environment variable or the fallback. Flag defaults
// use this so deployments can configure the daemon without arguments.
func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envIntOr(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBoolOr(name string, fallback bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
