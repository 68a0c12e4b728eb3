package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newDeliverCmd() *cobra.Command {
	var from string
	var to []string

	deliverCmd := &cobra.Command{
		Use:   "deliver [FILE]",
		Short: "Ingest a raw message",
		Long: `Ingest a raw RFC 5322 message from FILE, or from stdin when FILE is
omitted or "-", as if it had arrived over SMTP with the given envelope.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(to) == 0 {
				return errors.New("at least one --to recipient is required")
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read message: %w", err)
			}

			report, err := app.Ingester.Deliver(cmd.Context(), from, to, raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "delivered %d cop(ies), %d attachment(s) rejected\n", len(report.MessageIDs), report.Rejected)
			for _, addr := range report.Undeliverable {
				fmt.Fprintf(out, "undeliverable: %s\n", addr)
			}
			return nil
		},
	}
	deliverCmd.Flags().StringVar(&from, "from", "", "envelope sender")
	deliverCmd.Flags().StringSliceVar(&to, "to", nil, "envelope recipient, repeatable")
	return deliverCmd
}

func newSMTPCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smtp-check",
		Short: "Probe the outbound SMTP relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := app.Transmitter.Probe(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "relay %s is reachable\n", addr)
			return nil
		},
	}
}
