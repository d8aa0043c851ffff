package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/MedGa-eth/foundry/chain"
	"github.com/MedGa-eth/foundry/cmd/exitcodes"
	"github.com/MedGa-eth/foundry/tweak"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
)

// generateCmd represents the command provider for tweaked bytecode generation
var generateCmd = &cobra.Command{
	Use:           "generate [project-root]",
	Short:         "Generate replacement bytecode for a cloned contract",
	Long:          "Generate replacement bytecode for a cloned contract.\n\nThe optional project-root argument is the " + RootFlagDescription + ".",
	Args:          cobra.MaximumNArgs(1),
	RunE:          cmdRunGenerate,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	generateCmd.Flags().SortFlags = false
	generateCmd.Flags().String("rpc-url", "", "JSON-RPC endpoint of an archive node for the contract's chain (required unless --quick)")
	generateCmd.Flags().Bool("quick", false, "skip deployment replay and return the compiled runtime bytecode as-is, leaving immutable values unset")
	generateCmd.Flags().String("out", "", "file to write the generated bytecode to as hex (default is stdout)")

	rootCmd.AddCommand(generateCmd)
}

// resolveProjectRoot turns the optional positional project-root argument into an absolute path, defaulting
// to the current working directory.
func resolveProjectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return absRoot, nil
}

// cmdRunGenerate executes the CLI generate command: it loads the cloned project at the given root,
// generates tweaked bytecode in the requested mode, and writes the hex-encoded result to stdout or --out.
func cmdRunGenerate(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot(args)
	if err != nil {
		cmdLogger.Error("Failed to resolve the project root", err)
		return err
	}

	quick, err := cmd.Flags().GetBool("quick")
	if err != nil {
		return err
	}
	rpcURL, err := cmd.Flags().GetString("rpc-url")
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	project, err := tweak.LoadClonedProject(root)
	if err != nil {
		cmdLogger.Error("Failed to load the cloned project", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	var rpcConfig *chain.RPCConfig
	if rpcURL != "" {
		rpcConfig = &chain.RPCConfig{Endpoint: rpcURL}
	}

	// Cancel in-flight RPC requests on keyboard interrupts.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		cancel()
	}()

	code, err := project.TweakedCode(ctx, rpcConfig, quick)
	if err != nil {
		cmdLogger.Error("Failed to generate tweaked bytecode", err)
		if _, ok := err.(*tweak.IncompatibleStorageError); ok {
			return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeIncompatibleStorage)
		}
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	encoded := hexutil.Encode(code)
	if outPath == "" {
		fmt.Println(encoded)
		return nil
	}
	if err = os.WriteFile(outPath, []byte(encoded), 0644); err != nil {
		cmdLogger.Error("Failed to write the generated bytecode", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	cmdLogger.Info("Wrote generated bytecode to " + outPath)
	return nil
}
