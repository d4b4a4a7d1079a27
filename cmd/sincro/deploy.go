package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sincro-go/internal/app"
	"sincro-go/internal/model"
	"sincro-go/internal/sincro"
)

// deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Manage deployments of files into repositories",
}

var deployAddCmd = &cobra.Command{
	Use:   "add FILE_ID REPO_PATH [RELATIVE_PATH]",
	Short: "Deploy a managed file into a git repository",
	Long: "Deploy a managed file into a git repository. Content already at the target is imported " +
		"as the first commit of the new deployment; otherwise the file's content is written there. " +
		"For a bundle RELATIVE_PATH names the base directory and defaults to the repository root.",
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("from-branch")
		commit, _ := cmd.Flags().GetString("from-commit")
		noExclude, _ := cmd.Flags().GetBool("no-exclude")

		rel := ""
		if len(args) == 3 {
			rel = args[2]
		}
		return run("CreateDeployment", func(a *app.SincroApp) error {
			d, err := a.Service().CreateDeployment(cmd.Context(), sincro.DeploymentRequest{
				FileID:           args[0],
				RepoPath:         args[1],
				FileRelativePath: rel,
				SourceBranch:     branch,
				SourceCommit:     commit,
				AutoExclude:      !noExclude,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Deployed to %s on branch %s (%s)\n", d.TargetPath(), d.BranchName, d.ID)
			return nil
		})
	},
}

var deployListCmd = &cobra.Command{
	Use:   "ls FILE_ID",
	Short: "List a file's deployments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("ListDeployments", func(a *app.SincroApp) error {
			ds, err := a.Service().ListDeployments(args[0])
			if err != nil {
				return err
			}
			if len(ds) == 0 {
				fmt.Println("No deployments.")
				return nil
			}
			for _, d := range ds {
				printDeploymentLine(d)
			}
			return nil
		})
	},
}

var deployShowCmd = &cobra.Command{
	Use:   "show DEPLOYMENT_ID",
	Short: "Show a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("GetDeployment", func(a *app.SincroApp) error {
			svc := a.Service()
			d, err := svc.GetDeployment(args[0])
			if err != nil {
				return err
			}
			exists, err := svc.CheckFileExists(d.ID)
			if err != nil {
				return err
			}
			excluded, err := svc.CheckExcludeStatus(cmd.Context(), d.ID)
			if err != nil {
				return err
			}

			fmt.Printf("ID:          %s\n", d.ID)
			fmt.Printf("File:        %s\n", d.FileID)
			fmt.Printf("Target:      %s\n", d.TargetPath())
			fmt.Printf("Branch:      %s\n", d.BranchName)
			fmt.Printf("Active:      %t\n", d.IsActive)
			fmt.Printf("Exists:      %t\n", exists)
			fmt.Printf("Excluded:    %t\n", excluded)
			if d.CurrentCommitHash.Valid {
				fmt.Printf("Commit:      %s\n", d.CurrentCommitHash.String)
			}
			if d.LastSyncedAt.Valid {
				fmt.Printf("Last synced: %s\n", d.LastSyncedAt.Time.Format("2006-01-02 15:04:05"))
			}
			if d.Description.Valid {
				fmt.Printf("Description: %s\n", d.Description.String)
			}
			return nil
		})
	},
}

var deployRemoveCmd = &cobra.Command{
	Use:   "rm DEPLOYMENT_ID",
	Short: "Delete a deployment; its branch and history are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromDisk, _ := cmd.Flags().GetBool("from-disk")
		yes, _ := cmd.Flags().GetBool("yes")

		return run("DeleteDeployment", func(a *app.SincroApp) error {
			if fromDisk && !yes {
				d, err := a.Service().GetDeployment(args[0])
				if err != nil {
					return err
				}
				ok, err := confirm(fmt.Sprintf("Delete deployed files at %s?", d.TargetPath()))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}
			if err := a.Service().DeleteDeployment(cmd.Context(), args[0], fromDisk); err != nil {
				return err
			}
			fmt.Printf("Deleted deployment %s\n", args[0])
			return nil
		})
	},
}

var deployDeactivateCmd = &cobra.Command{
	Use:   "deactivate DEPLOYMENT_ID",
	Short: "Stop watching a deployment and drop its exclusion entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("Deactivate", func(a *app.SincroApp) error {
			return a.Service().Deactivate(cmd.Context(), args[0])
		})
	},
}

var deployReactivateCmd = &cobra.Command{
	Use:   "reactivate DEPLOYMENT_ID",
	Short: "Restore a deactivated deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("Reactivate", func(a *app.SincroApp) error {
			return a.Service().Reactivate(cmd.Context(), args[0])
		})
	},
}

var deploySyncCmd = &cobra.Command{
	Use:   "sync DEPLOYMENT_ID",
	Short: "Copy deployed content into the store without committing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("Sync", func(a *app.SincroApp) error {
			return a.Service().Sync(cmd.Context(), args[0])
		})
	},
}

var deployDescribeCmd = &cobra.Command{
	Use:   "describe DEPLOYMENT_ID [TEXT]",
	Short: "Set or clear a deployment's description",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var desc *string
		if len(args) == 2 {
			desc = &args[1]
		}
		return run("UpdateDescription", func(a *app.SincroApp) error {
			_, err := a.Service().UpdateDescription(args[0], desc)
			return err
		})
	},
}

var deployIgnoredCmd = &cobra.Command{
	Use:   "ignored RELATIVE_PATH",
	Short: "Report whether a path is ignored by the global git excludes file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("IsGloballyExcluded", func(a *app.SincroApp) error {
			excluded, err := a.Service().IsGloballyExcluded(args[0])
			if err != nil {
				return err
			}
			fmt.Println(excluded)
			return nil
		})
	},
}

func printDeploymentLine(d *model.Deployment) {
	state := color.New(color.FgGreen).Sprint("active")
	if !d.IsActive {
		state = color.New(color.FgHiBlack).Sprint("inactive")
	}
	fmt.Printf("  %s  %s  %s  %s\n", d.ID, d.BranchName, state, d.TargetPath())
}

// confirm asks a yes/no question on the terminal. Without a terminal there is
// nobody to ask, so the caller must pass --yes.
func confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("refusing to delete files without a terminal; pass --yes")
	}
	fmt.Printf("%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func init() {
	deployCmd.AddCommand(deployAddCmd)
	deployAddCmd.Flags().String("from-branch", "", "Start the deployment branch from this branch")
	deployAddCmd.Flags().String("from-commit", "", "Start the deployment branch from this commit")
	deployAddCmd.Flags().Bool("no-exclude", false, "Do not add entries to the repository's .git/info/exclude")
	deployCmd.AddCommand(deployListCmd)
	deployCmd.AddCommand(deployShowCmd)
	deployCmd.AddCommand(deployRemoveCmd)
	deployRemoveCmd.Flags().Bool("from-disk", false, "Also delete the deployed files")
	deployRemoveCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	deployCmd.AddCommand(deployDeactivateCmd)
	deployCmd.AddCommand(deployReactivateCmd)
	deployCmd.AddCommand(deploySyncCmd)
	deployCmd.AddCommand(deployDescribeCmd)
	deployCmd.AddCommand(deployIgnoredCmd)
}
