// Command twofactorctl administers the login service's user database and
// helps with TOTP secrets: creating users, enabling or disabling the second
// factor, and generating codes and provisioning QR codes by hand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "twofactorctl",
		Short:         "Administer the two-factor login service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(userCommand(&envFile))
	rootCmd.AddCommand(totpCommand(&envFile))

	return rootCmd
}
