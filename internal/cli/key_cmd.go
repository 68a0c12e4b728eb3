package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newKeyCmd() *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Service key management",
		Long:  `Show or rotate the key machine clients (MTA relays, metrics scrapers) send in the X-Service-Key header.`,
	}

	keyShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current service key",
		Run: func(cmd *cobra.Command, args []string) {
			currentKey := app.ServiceKeys.CurrentKey()
			if currentKey == "" {
				fail("no service key available")
			}
			fmt.Fprintln(cmd.OutOrStdout(), currentKey)
		},
	}

	var force bool
	keyResetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Rotate the service key",
		Long:  `Generate a new service key. Clients using the old key lose access immediately.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !force {
				fmt.Println("Warning: clients using the current key will be rejected after the reset.")
				fmt.Print("Reset the service key? (yes/no): ")

				input, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					fail("failed to read input: %v", err)
				}
				input = strings.TrimSpace(strings.ToLower(input))
				if input != "yes" && input != "y" {
					fmt.Println("Cancelled.")
					return
				}
			}

			newKey, err := app.ServiceKeys.Reset()
			if err != nil {
				fail("failed to reset key: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "New service key:")
			fmt.Fprintln(cmd.OutOrStdout(), newKey)
		},
	}
	keyResetCmd.Flags().BoolVarP(&force, "yes", "y", false, "skip the confirmation prompt")

	keyCmd.AddCommand(keyShowCmd, keyResetCmd)
	return keyCmd
}
