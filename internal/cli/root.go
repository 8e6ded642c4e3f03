// Package cli implements techrankctl, a command-line client for a running
// techrank server.
package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// Defaults for the persistent flags.
const (
	DefaultURL     = "http://localhost:8080"
	DefaultTimeout = 30 * time.Second
)

type globalOptions struct {
	url     string
	timeout time.Duration
}

func (o *globalOptions) client() *Client {
	return NewClient(o.url, o.timeout)
}

// NewRootCmd builds the techrankctl command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "techrankctl",
		Short: "Query and feed a techrank server",
		Long: `techrankctl talks to the techrank HTTP API. It can print rankings and
the team overview, add technicians, move datasets in and out, and seed a
server with generated service records.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.url, "url", DefaultURL, "Base URL of the techrank server")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", DefaultTimeout, "Per-request timeout")

	cmd.AddCommand(newRankCmd(opts))
	cmd.AddCommand(newOverviewCmd(opts))
	cmd.AddCommand(newTechniciansCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))

	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCmd(version)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func minutes(v float64) string {
	return fmt.Sprintf("%.1fm", v)
}
