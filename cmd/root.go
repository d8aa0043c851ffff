package cmd

import (
	"github.com/MedGa-eth/foundry/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger used by all CLI commands. It is bound to the global logger once logging options
// are known, in the root command's persistent pre-run.
var cmdLogger = logging.GlobalLogger.NewSubLogger("module", "cmd")

var rootCmd = &cobra.Command{
	Use:   "tweak",
	Short: "Generate storage-compatible replacement bytecode for cloned on-chain contracts",
	Long: "tweak recompiles a cloned on-chain contract project and produces replacement bytecode that can be\n" +
		"substituted into a simulated or forked execution environment without corrupting the contract's\n" +
		"persisted storage.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = zerolog.DebugLevel
		}
		logging.GlobalLogger = logging.NewLogger(level)
		logging.GlobalLogger.EnableConsole()
		cmdLogger = logging.GlobalLogger.NewSubLogger("module", "cmd")
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}
