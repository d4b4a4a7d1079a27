package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sincro-go/internal/app"
	"sincro-go/internal/metrics"
	"sincro-go/internal/sincro"
)

var commitCmd = &cobra.Command{
	Use:   "commit DEPLOYMENT_ID",
	Short: "Commit the deployed content to the deployment's branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		tag, _ := cmd.Flags().GetString("tag")

		return run("Commit", func(a *app.SincroApp) error {
			entry, err := a.Service().Commit(cmd.Context(), args[0], message, tag)
			if errors.Is(err, sincro.ErrNoChanges) {
				metrics.RecordCommit("no_changes")
				fmt.Println("Nothing to commit.")
				return nil
			}
			if err != nil {
				metrics.RecordCommit("error")
				return err
			}
			metrics.RecordCommit("committed")

			fmt.Printf("[%s] %s\n", shortHash(entry.Hash), entry.Message)
			if entry.Tag != "" {
				fmt.Printf("Tagged %s\n", entry.Tag)
			}
			return nil
		})
	},
}

var logCmd = &cobra.Command{
	Use:   "log DEPLOYMENT_ID",
	Short: "View a deployment's history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("ListCommits", func(a *app.SincroApp) error {
			commits, err := a.Service().ListCommits(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			yellow := color.New(color.FgYellow).SprintFunc()
			cyan := color.New(color.FgCyan).SprintFunc()
			for _, c := range commits {
				tag := ""
				if c.Tag != "" {
					tag = " " + cyan("("+c.Tag+")")
				}
				fmt.Printf("%s  %s  %s%s\n", yellow(shortHash(c.Hash)), c.Date.Local().Format("2006-01-02 15:04:05"), c.Message, tag)
			}
			return nil
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff DEPLOYMENT_ID [FROM [TO]]",
	Short: "Show changes",
	Long: "Without FROM, show how the deployed content differs from the branch head. " +
		"With FROM only, show that commit against its parent. With both, diff the two commits.",
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("GetDiff", func(a *app.SincroApp) error {
			var diff string
			var err error
			switch len(args) {
			case 1:
				diff, err = a.Service().GetDiffWorkingTree(cmd.Context(), args[0])
			case 2:
				diff, err = a.Service().GetDiff(cmd.Context(), args[0], args[1], "")
			default:
				diff, err = a.Service().GetDiff(cmd.Context(), args[0], args[1], args[2])
			}
			if err != nil {
				return err
			}
			if diff == "" {
				fmt.Println("No differences.")
				return nil
			}
			printColoredDiff(diff)
			return nil
		})
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout DEPLOYMENT_ID HASH",
	Short: "Write the content of a commit to the deployment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("CheckoutToCommit", func(a *app.SincroApp) error {
			if err := a.Service().CheckoutToCommit(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Checked out %s\n", shortHash(args[1]))
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show DEPLOYMENT_ID [HASH]",
	Short: "Print content at a commit, or the deployed content without HASH",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("GetFileAtRevision", func(a *app.SincroApp) error {
			if len(args) == 2 {
				content, err := a.Service().GetFileAtRevision(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Print(content)
				return nil
			}

			files, err := a.Service().GetCurrentFiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			header := color.New(color.FgCyan)
			missing := color.New(color.FgRed)
			for _, f := range files {
				if len(files) > 1 {
					header.Printf("=== %s ===\n", f.Path)
				}
				if f.Missing {
					missing.Println(f.Content)
					continue
				}
				fmt.Println(f.Content)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [DEPLOYMENT_ID]",
	Short: "Report drift for one deployment or summarize all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("Status", func(a *app.SincroApp) error {
			svc := a.Service()
			changed := color.New(color.FgYellow).SprintFunc()
			clean := color.New(color.FgGreen).SprintFunc()

			if len(args) == 1 {
				dirty, err := svc.CheckForChanges(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if dirty {
					fmt.Println(changed("modified"))
				} else {
					fmt.Println(clean("clean"))
				}
				return nil
			}

			stats, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d deployment(s), %d active, %d with uncommitted changes\n",
				stats.Total, stats.Active, stats.PendingChanges)
			for _, id := range stats.FileIDsWithChanges {
				f, err := svc.GetFile(id)
				if err != nil {
					return err
				}
				fmt.Printf("  %s %s\n", changed("M"), f.Name)
			}
			return nil
		})
	},
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func init() {
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	_ = commitCmd.MarkFlagRequired("message")
	commitCmd.Flags().StringP("tag", "t", "", "Tag the commit (namespaced by the deployment branch)")
}
