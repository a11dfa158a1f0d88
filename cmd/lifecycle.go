package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/emrgen/docgen/internal/server"
	"github.com/spf13/cobra"
)

var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "document retention commands",
}

func init() {
	lifecycleCmd.AddCommand(runLifecycleCmd())
}

func runLifecycleCmd() *cobra.Command {
	var phase string

	command := &cobra.Command{
		Use:   "run",
		Short: "run the retention sweep once",
		Long: `Run the retention sweep once and print its statistics.

Phases:
 archive   flag documents older than LIFECYCLE_ARCHIVE_AFTER as archived
 delete    delete documents older than LIFECYCLE_DELETE_AFTER that are not retained
 previews  purge mirrored previews older than PREVIEW_TTL
 all       every phase (default)
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := server.NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			var out any
			switch phase {
			case "", "all":
				out = app.Lifecycle.Run(ctx)
			case "archive":
				out = app.Lifecycle.Archive(ctx)
			case "delete":
				out = app.Lifecycle.DeleteExpired(ctx)
			case "previews":
				out = app.Lifecycle.PurgePreviews(ctx)
			default:
				return fmt.Errorf("unknown phase %q", phase)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	command.Flags().StringVarP(&phase, "phase", "p", "all", "archive, delete, previews or all")

	return command
}
