package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/geniusharmony/harmony"
	"github.com/geniusharmony/harmony/pkg/storage"
)

func init() {
	rootCmd.AddCommand(newJournalCommand())
}

func newJournalCommand() *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the local mutation journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var mutationID string
	listCmd := &cobra.Command{
		Use:   "list [<projet|tache|notification> <id>]",
		Short: "List journaled mutation steps for an entity or one mutation",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mutationID == "" && len(args) != 2 {
				return errors.New("expected an entity kind and id, or --mutation")
			}

			return withClient(cmd, func(ctx context.Context, client *harmony.Client) error {
				var (
					records []storage.JournalRecord
					err     error
				)
				if mutationID != "" {
					records, err = client.Executor().Steps(ctx, mutationID)
				} else {
					var id int64
					id, err = strconv.ParseInt(args[1], 10, 64)
					if err != nil {
						return fmt.Errorf("invalid entity id %q", args[1])
					}
					records, err = client.Executor().History(ctx, args[0], id)
				}
				if err != nil {
					return err
				}

				if len(records) == 0 {
					cmd.Println("No journaled mutations.")
					return nil
				}
				for _, r := range records {
					line := fmt.Sprintf("%s  %s  %-28s %-10s %s/%d by %d",
						r.DateAdded.Local().Format(time.DateTime), shortID(r.MutationID), r.Command, r.Event, r.EntityKind, r.EntityID, r.ActorID)
					if r.ErrorMessage != "" {
						line += "  " + r.ErrorMessage
					}
					cmd.Println(line)
				}
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&mutationID, "mutation", "", "Show the steps of one mutation id.")
	journalCmd.AddCommand(listCmd)

	olderThan := 30 * 24 * time.Hour
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop journal steps older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *harmony.Client) error {
				n, err := client.Executor().Purge(ctx, olderThan)
				if err != nil {
					return err
				}
				cmd.Printf("Removed %d journal step(s).\n", n)
				return nil
			})
		},
	}
	purgeCmd.Flags().DurationVar(&olderThan, "older-than", olderThan, "Minimum age of the steps to drop.")
	journalCmd.AddCommand(purgeCmd)

	return journalCmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
