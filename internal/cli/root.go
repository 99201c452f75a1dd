// Package cli implements the screentime CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dovakin0007/screen-time-tracking-app/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
	logPath    string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "screentime",
	Short: "Track application screen time",
	Long:  "A screen-time daemon. Tracks visible windows into SQLite, classifies apps through an external agent, and enforces daily limits.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $SCREENTIME_DB or ~/.screentime/screen_time.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path (default: ~/.screentime/config.json)")
	RootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Log file path (default: ~/.screentime/screentime.log)")
}

func dataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".screentime")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("SCREENTIME_DB"); env != "" {
		return env
	}
	return filepath.Join(dataDir(), "screen_time.db")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(dataDir(), "config.json")
}

func getLogPath() string {
	if logPath != "" {
		return logPath
	}
	return filepath.Join(dataDir(), "screentime.log")
}

func openStore() (*store.Store, error) {
	return store.Open(getDBPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
