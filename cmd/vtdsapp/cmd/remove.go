package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Tear down the deployed workloads",
	Long: `Remove stops and removes the mock services from the virtual nodes
and clears the prepared deploy plan.`,
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.app.Remove(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Application layer removed.")
	return nil
}
