package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the prepared layer can deploy",
	Long: `Validate checks the prepared layer definition: the topology is
structurally sound and every artifact the deploy plan references exists
in the build directory.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.app.Validate(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Application layer is valid and ready to deploy.")
	return nil
}
