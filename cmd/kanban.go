package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/geniusharmony/harmony"
	"github.com/geniusharmony/harmony/pkg/api"
	"github.com/geniusharmony/harmony/pkg/catalog"
	"github.com/geniusharmony/harmony/pkg/model"
)

func init() {
	rootCmd.AddCommand(newKanbanCommand())
}

func newKanbanCommand() *cobra.Command {
	var filter struct {
		projet int64
		mine   bool
	}

	kanbanCmd := &cobra.Command{
		Use:   "kanban",
		Short: "Show and move tasks on the kanban board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	kanbanCmd.PersistentFlags().Int64Var(&filter.projet, "projet", 0, "Only tasks of this project.")
	kanbanCmd.PersistentFlags().BoolVar(&filter.mine, "mine", false, "Only tasks assigned to the current user.")

	taskFilter := func(client *harmony.Client) api.TaskFilter {
		f := api.TaskFilter{Projet: model.ProjectID(filter.projet)}
		if filter.mine {
			f.AssigneA = client.Session().User().ID
		}
		return f
	}

	kanbanCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the board columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, client *harmony.Client) error {
				board, err := client.NewBoard()
				if err != nil {
					return err
				}
				if err := board.Load(ctx, taskFilter(client)); err != nil {
					return err
				}

				for _, column := range board.Columns() {
					cmd.Printf("== %s (%d)\n", column.Label, len(column.Tasks))
					for _, task := range column.Tasks {
						marker := " "
						if board.Permissions(task.ID).CanDrag {
							marker = "*"
						}
						cmd.Printf(" %s #%-5d %-40s %s\n", marker, task.ID, task.Titre, catalog.Priority(task.Priorite).Label)
					}
				}
				cmd.Println("* movable by you")
				return nil
			})
		},
	})

	kanbanCmd.AddCommand(&cobra.Command{
		Use:   "move <task-id> <a_faire|en_cours|termine>",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			to := model.TaskStatus(args[1])

			return withSession(cmd, func(ctx context.Context, client *harmony.Client) error {
				board, err := client.NewBoard()
				if err != nil {
					return err
				}
				if err := board.Load(ctx, taskFilter(client)); err != nil {
					return err
				}
				if err := board.Move(ctx, model.TaskID(id), to); err != nil {
					return err
				}
				cmd.Printf("Moved task #%d to %s.\n", id, catalog.TaskStatus(to).Label)
				return nil
			})
		},
	})

	return kanbanCmd
}
