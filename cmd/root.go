// Package cmd provides the command-line interface for Sparta.
package cmd

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/sparta/datarecording"
)

// Environment variables read by the commands. They can also be set in a
// .env file in the working directory.
const (
	EnvMonitorPort  = "SPARTA_MONITOR_PORT"
	EnvRecordDB     = "SPARTA_RECORD_DB"
	EnvSQLiteDriver = "SPARTA_SQLITE_DRIVER"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sparta",
	Short: "Sparta CLI tool runs and inspects cycle-accurate simulations.",
	Long: `Sparta CLI tool runs and inspects cycle-accurate simulations. ` +
		`It can run the demo pipeline, read back its event traces, check ` +
		`scoreboard latency matrices, flatten parameter files and show how ` +
		`sync ports cross clocks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return loadDotEnv(".env")
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadDotEnv reads a .env file if there is one. Variables that are already
// set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return godotenv.Load(path)
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}

	return def
}

func envIntOr(name string, def int) int {
	v, err := strconv.Atoi(envOr(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}

	return v
}

func sqliteDriver() string {
	return envOr(EnvSQLiteDriver, datarecording.DriverCgo)
}
