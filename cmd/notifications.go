package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geniusharmony/harmony"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/notify"
)

func init() {
	rootCmd.AddCommand(newNotificationsCommand())
}

func newNotificationsCommand() *cobra.Command {
	notificationsCmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notifs"},
		Short:   "Read and manage notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var unreadOnly bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, inbox *notify.Inbox) error {
				cmd.Printf("%d unread\n", inbox.UnreadCount())
				for _, n := range inbox.Notifications() {
					if unreadOnly && n.IsRead {
						continue
					}
					marker := " "
					if !n.IsRead {
						marker = "•"
					}
					cmd.Printf("%s #%-5d %s  %s: %s\n", marker, n.ID, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Titre, n.Message)
				}
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only unread notifications.")
	notificationsCmd.AddCommand(listCmd)

	notificationsCmd.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark one notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNotificationID(args[0])
			if err != nil {
				return err
			}
			return withInbox(cmd, func(ctx context.Context, inbox *notify.Inbox) error {
				if err := inbox.MarkRead(ctx, id); err != nil {
					return err
				}
				cmd.Printf("Marked #%d as read, %d unread left.\n", id, inbox.UnreadCount())
				return nil
			})
		},
	})

	notificationsCmd.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, inbox *notify.Inbox) error {
				if err := inbox.MarkAllRead(ctx); err != nil {
					return err
				}
				cmd.Println("All notifications marked as read.")
				return nil
			})
		},
	})

	notificationsCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNotificationID(args[0])
			if err != nil {
				return err
			}
			return withInbox(cmd, func(ctx context.Context, inbox *notify.Inbox) error {
				if err := inbox.Delete(ctx, id); err != nil {
					return err
				}
				cmd.Printf("Deleted #%d.\n", id)
				return nil
			})
		},
	})

	notificationsCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every read notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, inbox *notify.Inbox) error {
				if err := inbox.DeleteAllRead(ctx); err != nil {
					return err
				}
				cmd.Printf("Read notifications deleted, %d left.\n", len(inbox.Notifications()))
				return nil
			})
		},
	})

	var schedule string
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the unread counter until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, inbox *notify.Inbox) error {
				poller, err := notify.NewPoller(inbox, notify.PollerConfig{
					Schedule: schedule,
					OnChange: func(unread int) { cmd.Printf("%d unread\n", unread) },
				})
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				cmd.Printf("%d unread\n", inbox.UnreadCount())
				poller.Start()
				<-ctx.Done()
				<-poller.Stop().Done()
				return nil
			})
		},
	}
	watchCmd.Flags().StringVar(&schedule, "schedule", notify.DefaultPollSchedule, "Cron spec or descriptor for polling.")
	notificationsCmd.AddCommand(watchCmd)

	return notificationsCmd
}

func withInbox(cmd *cobra.Command, fn func(ctx context.Context, inbox *notify.Inbox) error) error {
	return withSession(cmd, func(ctx context.Context, client *harmony.Client) error {
		inbox, err := client.NewInbox()
		if err != nil {
			return err
		}
		if err := inbox.Refresh(ctx); err != nil {
			return err
		}
		if err := inbox.RefreshUnread(ctx); err != nil {
			return err
		}
		return fn(ctx, inbox)
	})
}

func parseNotificationID(raw string) (model.NotificationID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid notification id %q", raw)
	}
	return model.NotificationID(id), nil
}
