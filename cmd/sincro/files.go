package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sincro-go/internal/app"
	"sincro-go/internal/model"
)

// file command
var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage managed files and bundles",
}

var fileAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create an empty managed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias, _ := cmd.Flags().GetString("alias")
		return run("CreateFile", func(a *app.SincroApp) error {
			f, err := a.Service().CreateFile(cmd.Context(), args[0], alias)
			if err != nil {
				return err
			}
			fmt.Printf("Created file %s (%s)\n", f.Name, f.ID)
			return nil
		})
	},
}

var fileBundleCmd = &cobra.Command{
	Use:   "bundle NAME BASE_DIR [PATH...]",
	Short: "Create a bundle from files under BASE_DIR",
	Long:  "Create a bundle from files under BASE_DIR. Without PATH arguments every file under BASE_DIR is imported.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias, _ := cmd.Flags().GetString("alias")
		return run("CreateBundle", func(a *app.SincroApp) error {
			f, err := a.Service().CreateBundle(cmd.Context(), args[0], alias, args[1], args[2:])
			if err != nil {
				return err
			}
			entries, err := a.Service().ListBundleEntries(cmd.Context(), f.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Created bundle %s (%s) with %d file(s)\n", f.Name, f.ID, len(entries))
			return nil
		})
	},
}

var fileListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List managed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("ListFiles", func(a *app.SincroApp) error {
			files, err := a.Service().ListFiles()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("No managed files.")
				return nil
			}
			for _, f := range files {
				fmt.Printf("%s  %-6s  %-24s  %s%s\n", f.ID, f.Kind, f.Name, f.Alias, formatTags(f.Tags))
			}
			return nil
		})
	},
}

var fileShowCmd = &cobra.Command{
	Use:   "show FILE_ID",
	Short: "Show a managed file and its deployments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("GetFile", func(a *app.SincroApp) error {
			f, err := a.Service().GetFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("ID:      %s\n", f.ID)
			fmt.Printf("Name:    %s\n", f.Name)
			fmt.Printf("Alias:   %s\n", f.Alias)
			fmt.Printf("Kind:    %s\n", f.Kind)
			fmt.Printf("Created: %s\n", f.CreatedAt.Format("2006-01-02 15:04:05"))

			if f.IsBundle() {
				entries, err := a.Service().ListBundleEntries(cmd.Context(), f.ID)
				if err != nil {
					return err
				}
				fmt.Println("\nEntries:")
				for _, e := range entries {
					fmt.Printf("  %s\n", e)
				}
			}

			ds, err := a.Service().ListDeployments(f.ID)
			if err != nil {
				return err
			}
			fmt.Println("\nDeployments:")
			for _, d := range ds {
				printDeploymentLine(d)
			}
			return nil
		})
	},
}

var fileUpdateCmd = &cobra.Command{
	Use:   "update FILE_ID",
	Short: "Rename or re-alias a managed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var update model.FileUpdate
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			update.Name = &name
		}
		if cmd.Flags().Changed("alias") {
			alias, _ := cmd.Flags().GetString("alias")
			update.Alias = &alias
		}
		if cmd.Flags().Changed("auto-icon") {
			auto, _ := cmd.Flags().GetBool("auto-icon")
			update.UseAutoIcon = &auto
		}
		return run("UpdateFile", func(a *app.SincroApp) error {
			f, err := a.Service().UpdateFile(args[0], update)
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s: %s %s\n", f.ID, f.Name, f.Alias)
			return nil
		})
	},
}

var fileRemoveCmd = &cobra.Command{
	Use:   "rm FILE_ID",
	Short: "Delete a managed file, its store and its deployments",
	Long:  "Delete a managed file, its version store and its deployment records. Deployed files are left on disk.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("DeleteFile", func(a *app.SincroApp) error {
			if err := a.Service().DeleteFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted file %s\n", args[0])
			return nil
		})
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage labels for files and deployments",
}

var tagAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		color, _ := cmd.Flags().GetString("color")
		return run("CreateTag", func(a *app.SincroApp) error {
			tag, err := a.Service().CreateTag(args[0], color)
			if err != nil {
				return err
			}
			fmt.Printf("Created tag %s (%s)\n", tag.Name, tag.ID)
			return nil
		})
	},
}

var tagListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("ListTags", func(a *app.SincroApp) error {
			tags, err := a.Service().ListTags()
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Println("No tags.")
				return nil
			}
			for _, t := range tags {
				fmt.Printf("%s  %-16s  %s  %d file(s)\n", t.ID, t.Name, t.Color, t.FileCount)
			}
			return nil
		})
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "rm TAG_ID",
	Short: "Delete a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("DeleteTag", func(a *app.SincroApp) error {
			return a.Service().DeleteTag(args[0])
		})
	},
}

var tagFileCmd = &cobra.Command{
	Use:   "file FILE_ID [TAG_ID...]",
	Short: "Replace a file's tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("SetFileTags", func(a *app.SincroApp) error {
			return a.Service().SetFileTags(args[0], args[1:])
		})
	},
}

var tagDeploymentCmd = &cobra.Command{
	Use:   "deployment DEPLOYMENT_ID [TAG_ID...]",
	Short: "Replace a deployment's tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("SetDeploymentTags", func(a *app.SincroApp) error {
			return a.Service().SetDeploymentTags(args[0], args[1:])
		})
	},
}

func formatTags(tags []*model.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return "  [" + strings.Join(names, ", ") + "]"
}

func init() {
	fileCmd.AddCommand(fileAddCmd)
	fileAddCmd.Flags().String("alias", "", "Display alias")
	fileCmd.AddCommand(fileBundleCmd)
	fileBundleCmd.Flags().String("alias", "", "Display alias")
	fileCmd.AddCommand(fileListCmd)
	fileCmd.AddCommand(fileShowCmd)
	fileCmd.AddCommand(fileUpdateCmd)
	fileUpdateCmd.Flags().String("name", "", "New display name")
	fileUpdateCmd.Flags().String("alias", "", "New alias")
	fileUpdateCmd.Flags().Bool("auto-icon", true, "Derive the icon from the file name")
	fileCmd.AddCommand(fileRemoveCmd)

	tagCmd.AddCommand(tagAddCmd)
	tagAddCmd.Flags().String("color", "", "Hex colour (default #6b7280)")
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagRemoveCmd)
	tagCmd.AddCommand(tagFileCmd)
	tagCmd.AddCommand(tagDeploymentCmd)
}
