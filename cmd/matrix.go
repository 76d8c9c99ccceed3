package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/sparta/scoreboard"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Work with scoreboard latency matrices.",
}

var matrixValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a latency matrix written in YAML or CSV.",
	Long: "`matrix validate regs.yaml` parses the matrix and prints it back. " +
		"Files ending in .csv are read as CSV, everything else as YAML.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := readMatrix(args[0])
		if err != nil {
			return err
		}

		return printMatrix(cmd.OutOrStdout(), m)
	},
}

func init() {
	rootCmd.AddCommand(matrixCmd)
	matrixCmd.AddCommand(matrixValidateCmd)
}

func readMatrix(path string) (*scoreboard.LatencyMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return scoreboard.ParseCSV(f)
	}

	return scoreboard.ParseYAML(f)
}

func printMatrix(out io.Writer, m *scoreboard.LatencyMatrix) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	for _, row := range m.Table() {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "OK: %d units\n", len(m.Units()))

	return err
}
