package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tonojkeee/koordinator/internal/api/middleware"
	"github.com/tonojkeee/koordinator/internal/services"
	"github.com/tonojkeee/koordinator/internal/settings"
)

// Services are the dependencies of the command line tool
type Services struct {
	Users       *services.UserService
	Accounts    *services.AccountService
	Settings    *settings.Store
	Ingester    services.Ingester
	Transmitter *services.SMTPTransmitter
	ServiceKeys *middleware.ServiceKeyManager
}

var app *Services

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "koordinator",
		Short: "Koordinator mail core",
		Long: `Koordinator runs the mail pipeline of the collaboration platform:
an HTTP API, an inbound SMTP listener and an outbound relay client.

Without arguments the server starts. The subcommands manage it offline:
  koordinator key show                         # show the service key
  koordinator key reset                        # rotate the service key
  koordinator user create                      # create a user and its mailbox
  koordinator user list                        # list users
  koordinator user reset-pwd                   # reset a user's password
  koordinator settings list                    # show dynamic settings
  koordinator settings set KEY VALUE           # change a dynamic setting
  koordinator deliver --from a@x --to b@y FILE # ingest a raw message
  koordinator smtp-check                       # probe the outbound relay`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newKeyCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newDeliverCmd())
	rootCmd.AddCommand(newSMTPCheckCmd())
	return rootCmd
}

// Execute runs the CLI against svc and exits non-zero on failure
func Execute(svc *Services) {
	app = svc
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// fail prints to stderr and exits, for the interactive commands
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
