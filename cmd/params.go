package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/sparta/param"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Work with parameter files.",
}

var paramsFlattenCmd = &cobra.Command{
	Use:   "flatten [file...]",
	Short: "Print the dotted keys of YAML parameter files.",
	Long: "`params flatten base.yaml fast.yaml` prints every key of the " +
		"files in the order they are applied. Later keys win.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadParamFiles(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, kv := range t.Entries() {
			fmt.Fprintf(out, "%s = %s  # %s\n", kv.Key, kv.Value, kv.Origin)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.AddCommand(paramsFlattenCmd)
}

func loadParamFiles(files []string) (*param.Tree, error) {
	t := param.NewTree()

	for _, f := range files {
		if err := t.LoadFile(f); err != nil {
			return nil, err
		}
	}

	return t, nil
}
