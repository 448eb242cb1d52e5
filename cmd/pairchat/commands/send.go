package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pairchat/internal/app"
	"pairchat/internal/domain"
	"pairchat/internal/services/stream"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return withConversation(cmd, args[0], func(ctx context.Context, c *app.Conversation, sid domain.SessionID) error {
				m, err := c.Messages.SendText(ctx, sid, text)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", m.ID)
				return nil
			})
		},
	}
}

func nudgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nudge <peer>",
		Short: "Nudge a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConversation(cmd, args[0], func(ctx context.Context, c *app.Conversation, sid domain.SessionID) error {
				if _, err := c.Messages.SendNudge(ctx, sid); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "nudged")
				return nil
			})
		},
	}
}

// withConversation resolves the session with peer and runs fn once it is
// known, all within --timeout.
func withConversation(cmd *cobra.Command, peerName string, fn func(ctx context.Context, c *app.Conversation, sid domain.SessionID) error) error {
	acct, err := unlock()
	if err != nil {
		return err
	}
	peer, err := acct.Lookup(peerName)
	if err != nil {
		return err
	}
	return oneShot(cmd, func(ctx context.Context) error {
		c := acct.Conversation(peer, stream.Events{})
		c.Open()
		defer c.Close()
		sid, err := c.WaitSession(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, c, sid)
	})
}
