package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTechniciansCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "technicians",
		Aliases: []string{"tech"},
		Short:   "List or add technicians",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			techs, err := opts.client().Technicians(cmd.Context(), "", "")
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tCALLS")
			for _, t := range techs {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", t.ID, t.Name, t.TotalCalls)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add NAME",
		Short:   "Add a technician",
		Example: `  techrankctl technicians add "Ada Lovelace"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.client().AddTechnician(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", t.Name, t.ID)
			return nil
		},
	})

	return cmd
}
