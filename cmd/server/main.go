/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the settlement quoter.

COMMANDS:
  serve   Run the HTTP API (default)
  quote   Print a quote breakdown for the given amounts

GLOBAL FLAGS:
  --config     Optional YAML configuration file
  --log-level  Log level override (debug, info, warn, error)

ENVIRONMENT:
  WEBHOOK_URL         Webhook destination advertised by /api/config
  QUOTER_<SECTION>_<KEY>  Any configuration key, e.g. QUOTER_SERVER_ADDR

EXAMPLES:
  # Run with defaults
  WEBHOOK_URL=https://n8n.example/webhook/acuerdos ./server serve

  # One-off quote
  ./server quote --capital 2000000 --intereses 300000 --costos 100000 --plan contado

SEE ALSO:
  - serve.go: Server wiring and graceful shutdown
  - config/config.go: Configuration keys
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Embedded zone database so America/Bogota resolves on minimal images.
	_ "time/tzdata"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "server",
		Short:         "Debt settlement quoter",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	serve := newServeCmd(&flags)
	root.AddCommand(serve, newQuoteCmd())
	root.RunE = serve.RunE
	return root
}
