package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/geniusharmony/harmony"
	"github.com/geniusharmony/harmony/pkg/authz"
	"github.com/geniusharmony/harmony/pkg/catalog"
)

func init() {
	rootCmd.AddCommand(newPermsCommand())
}

func newPermsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "perms <projet|tache> <id>",
		Short: "Show what the current user may do with a project or task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := harmony.ParsePermissionQuery(args[0], args[1])
			if err != nil {
				return err
			}

			return withSession(cmd, func(ctx context.Context, client *harmony.Client) error {
				decision, err := client.Permissions(ctx, query)
				if err != nil {
					return err
				}
				printDecision(cmd, query, decision)
				return nil
			})
		},
	}
}

// printDecision lists every action, denied ones included, so a missing line
// never has to be read as a refusal.
func printDecision(cmd *cobra.Command, query harmony.PermissionQuery, decision authz.Decision) {
	cmd.Printf("%s %d\n", decision.Resource, query.ID)
	for _, grant := range decision.Grants {
		verdict := "denied"
		if grant.Allowed {
			verdict = "allowed"
		}
		cmd.Printf("  %-20s %s\n", grant.Action, verdict)
	}

	if query.Resource != harmony.ResourceProject {
		return
	}
	if len(decision.Statuts) == 0 {
		cmd.Println("  statuts: none")
		return
	}
	cmd.Print("  statuts:")
	for _, s := range decision.Statuts {
		cmd.Printf(" %s", catalog.ProjectStatus(s).Label)
	}
	cmd.Println()
}
