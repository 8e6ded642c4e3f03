package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const exportFilePermission = 0o600

func newExportCmd(opts *globalOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the dataset as JSON",
		Example: `  techrankctl export
  techrankctl export --out backup.json
  techrankctl export --out -   # write to stdout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, name, err := opts.client().Export(cmd.Context())
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}
			path := out
			if path == "" {
				path = name
			}
			if path == "" {
				path = "techrank-export.json"
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return fmt.Errorf("create directory: %w", err)
				}
			}
			if err := os.WriteFile(path, body, exportFilePermission); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(body))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, or - for stdout (default: server-suggested name)")

	return cmd
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the server's dataset with a JSON export",
		Long: `import uploads a file produced by export. The server validates the whole
document and replaces its state only when it is valid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			if err := opts.client().Import(cmd.Context(), body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", args[0])
			return nil
		},
	}
}
