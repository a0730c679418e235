package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

var showToken bool

var tokenCmd = &cobra.Command{
	Use:       "token <service>",
	Short:     "Fetch a service token and print its expiry",
	Long:      "Fetches a fresh token for masoko, bnpl or generic using the configured credentials and writes it to the token store.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(tokens.ServiceMasoko), string(tokens.ServiceBNPL), string(tokens.ServiceGeneric)},
	RunE:      runToken,
}

func init() {
	tokenCmd.Flags().BoolVar(&showToken, "show", false, "print the token itself")
}

func runToken(cmd *cobra.Command, args []string) error {
	svc := tokens.Service(args[0])

	a, err := tokenFetchers(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.fetchers.Fetch(cmd.Context(), svc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "service:    %s\n", svc)
	fmt.Fprintf(out, "expires at: %s (in %s)\n", rec.ExpiresAt.Format(time.RFC3339), time.Until(rec.ExpiresAt).Round(time.Second))
	if showToken {
		fmt.Fprintf(out, "token:      %s\n", rec.Token)
	}
	return nil
}
