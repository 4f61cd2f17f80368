package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the demo workloads to the virtual nodes",
	Long: `Deploy copies the mock service binary and deploy script to every
service-bearing virtual node over SSH and runs the install command. The
isolated node classes receive no workload.`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.app.Deploy(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Deploy complete.")
	return nil
}
