package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/emrgen/docgen/internal/cache"
	"github.com/emrgen/docgen/internal/config"
	"github.com/emrgen/docgen/internal/render"
	"github.com/emrgen/docgen/internal/service"
	"github.com/emrgen/docgen/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "template commands",
}

func init() {
	templateCmd.AddCommand(listTemplatesCmd())
	templateCmd.AddCommand(listVersionsCmd())
	templateCmd.AddCommand(restoreVersionCmd())
}

// templateService opens the database without the storage and event stack.
func templateService() (*service.TemplateService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := config.GetDb(cfg)
	if err != nil {
		return nil, err
	}

	return service.NewTemplateService(
		store.NewGormStore(db),
		cache.NewTemplateCache(0),
		cache.NewPreviewCache(cache.PreviewConfig{}),
		render.NewEngine(render.Options{}),
	), nil
}

func listTemplatesCmd() *cobra.Command {
	var category string
	var active bool

	command := &cobra.Command{
		Use:   "list",
		Short: "list templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := templateService()
			if err != nil {
				return err
			}

			list, err := templates.List(cmd.Context(), category, active)
			if err != nil {
				return err
			}

			table := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(table, "ID\tNAME\tCATEGORY\tMODE\tVERSION\tACTIVE\tDEFAULT")
			for _, t := range list {
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%d\t%t\t%t\n",
					t.ID, t.Name, t.Category, t.LanguageMode, t.Version, t.IsActive, t.IsDefault)
			}
			return table.Flush()
		},
	}

	command.Flags().StringVarP(&category, "category", "c", "", "template category")
	command.Flags().BoolVarP(&active, "active", "a", false, "only active templates")

	return command
}

func listVersionsCmd() *cobra.Command {
	var templateID string

	command := &cobra.Command{
		Use:   "versions",
		Short: "list the versions of a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, []string{"template-id"}) {
				return nil
			}
			id, err := uuid.Parse(templateID)
			if err != nil {
				return err
			}

			templates, err := templateService()
			if err != nil {
				return err
			}

			versions, err := templates.ListVersions(cmd.Context(), id)
			if err != nil {
				return err
			}

			table := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(table, "ID\tSEQUENCE\tNAME\tAUTHOR\tREASON\tCREATED")
			for _, v := range versions {
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\n",
					v.ID, strconv.FormatInt(v.Sequence, 10), v.Name, v.Author, v.Reason, v.CreatedAt.Format("2006-01-02 15:04"))
			}
			return table.Flush()
		},
	}

	command.Flags().StringVarP(&templateID, "template-id", "t", "", "template id (required)")

	return command
}

func restoreVersionCmd() *cobra.Command {
	var templateID, versionID, author string

	command := &cobra.Command{
		Use:   "restore",
		Short: "restore a template version",
		Long: `Restore writes the content of a version back as the newest version.
The state before the restore is kept as a version of its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, []string{"template-id", "version-id"}) {
				return nil
			}
			id, err := uuid.Parse(templateID)
			if err != nil {
				return err
			}
			vid, err := uuid.Parse(versionID)
			if err != nil {
				return err
			}

			templates, err := templateService()
			if err != nil {
				return err
			}

			t, err := templates.RestoreVersion(cmd.Context(), id, vid, author)
			if err != nil {
				return err
			}

			fmt.Printf("template %s restored, now at version %d\n", t.ID, t.Version)
			return nil
		},
	}

	command.Flags().StringVarP(&templateID, "template-id", "t", "", "template id (required)")
	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")
	command.Flags().StringVar(&author, "author", "cli", "author recorded on the snapshot")

	return command
}

// checkMissingFlags prints the required flags that were not given.
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missing []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missing = append(missing, "--"+required)
		}
	}
	if len(missing) == 0 {
		return false
	}

	cmd.PrintErrf("missing: %s\n\n", strings.Join(missing, " "))
	_ = cmd.Usage()
	return true
}
