package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pairchat/internal/domain"
	"pairchat/internal/services/presence"
)

func presenceCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Publish your presence and watch your contacts come and go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.PresenceStatus(status)
			if !st.Reachable() {
				return fmt.Errorf("status must be online, away or busy, got %q", status)
			}
			acct, err := unlock()
			if err != nil {
				return err
			}
			names, err := aliasNames()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			changes := make(chan string, 32)
			report := func(s string) {
				select {
				case changes <- s:
				default:
				}
			}
			events := presence.Events{
				Reachable: func(s domain.PresenceSnapshot) {
					report(noticeStyle.Render(fmt.Sprintf("%s came %s", displayName(s.Contact, names), s.Status)))
				},
				Changed: func(s domain.PresenceSnapshot) {
					report(fmt.Sprintf("%s %s", timeStyle.Render(time.Now().Format("15:04:05")),
						statusLine(displayName(s.Contact, names), s.Status)))
				},
				Removed: func(id domain.Identity) {
					report(timeStyle.Render(displayName(id, names) + " is no longer watched"))
				},
			}

			return withRuntime(cmd, func(ctx context.Context) error {
				pub := acct.Publisher()
				pub.SetStatus(st)
				pub.Start()
				coord := acct.Coordinator(events)
				coord.Start()
				defer coord.Stop()

				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("you are %s; watching contacts (Ctrl-C to stop)", st)))
				for {
					select {
					case s := <-changes:
						fmt.Fprintln(out, s)
					case <-ctx.Done():
						// Leave an offline record behind so contacts need not
						// wait for the heartbeat to age out.
						acked := make(chan error, 1)
						pub.Close(func(err error) { acked <- err })
						select {
						case <-acked:
						case <-time.After(2 * time.Second):
						}
						return nil
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.StatusOnline), "online, away or busy")
	return cmd
}

func statusLine(name string, s domain.PresenceStatus) string {
	style := timeStyle
	if s.Reachable() {
		style = selfStyle
	}
	return fmt.Sprintf("%s is %s", name, style.Render(string(s)))
}
