package cmd

import (
	"github.com/MedGa-eth/foundry/cmd/exitcodes"
	"github.com/MedGa-eth/foundry/tweak"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// checkCmd represents the command provider for storage compatibility checking
var checkCmd = &cobra.Command{
	Use:           "check [project-root]",
	Short:         "Check a cloned project's storage layout against the deployed contract",
	Long:          "Check a cloned project's storage layout against the deployed contract.\n\nThe optional project-root argument is the " + RootFlagDescription + ".",
	Args:          cobra.MaximumNArgs(1),
	RunE:          cmdRunCheck,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// cmdRunCheck executes the CLI check command: it recompiles the cloned project at the given root and
// verifies the target contract's current storage layout is compatible with the recorded one.
func cmdRunCheck(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot(args)
	if err != nil {
		cmdLogger.Error("Failed to resolve the project root", err)
		return err
	}

	project, err := tweak.LoadClonedProject(root)
	if err != nil {
		cmdLogger.Error("Failed to load the cloned project", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	artifact, err := project.TargetArtifact()
	if err != nil {
		cmdLogger.Error("Failed to compile the cloned project", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	if artifact.StorageLayout == nil {
		err = errors.Errorf("compiled artifact for '%s' carries no storage layout", project.Metadata.TargetContract)
		cmdLogger.Error("Failed to check storage compatibility", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	if err = tweak.CheckStorageCompatibility(&project.Metadata.StorageLayout, artifact.StorageLayout); err != nil {
		cmdLogger.Error("Storage layout is incompatible", err)
		if _, ok := err.(*tweak.IncompatibleStorageError); ok {
			return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeIncompatibleStorage)
		}
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	cmdLogger.Info("Storage layout is compatible with the deployed contract")
	return nil
}
