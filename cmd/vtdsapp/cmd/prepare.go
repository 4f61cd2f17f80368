package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Create the application layer definition",
	Long: `Prepare renders the deploy plan and the per-class deploy scripts into
the build directory and records the topology nodes in the state store.
Prepare must run before validate, deploy or remove.`,
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	plan, err := e.app.Prepare(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Prepared application layer in %s\n", plan.BuildDir)
	for class, assignment := range plan.Assignments {
		fmt.Printf("  %-8s -> %s on port %d\n", class, assignment.Service, assignment.ServicePort)
	}
	fmt.Println("Place the mock binaries in the build directory, then run validate.")
	return nil
}
