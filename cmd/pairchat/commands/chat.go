package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairchat/internal/conversation"
	"pairchat/internal/domain"
	"pairchat/internal/services/stream"
)

type typingChange struct {
	session domain.SessionID
	on      bool
}

const chatLong = `Open an interactive conversation with a peer.

Each line is sent as a message. End a line with \ to continue the message on
the next line; the peer sees you typing until it is sent.
Commands: /older, /nudge, /quit.`

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer>",
		Short: "Open an interactive conversation with a peer",
		Long:  chatLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			peer, err := acct.Lookup(args[0])
			if err != nil {
				return err
			}
			peerName := displayName(peer, nil)
			pair := domain.NewPairID(acct.Self, peer)
			out := cmd.OutOrStdout()

			// Controller events arrive on the loop; only the latest state
			// matters.
			states := make(chan []domain.Message, 1)
			nudges := make(chan domain.NudgeSignal, 8)
			typing := make(chan typingChange, 8)
			events := stream.Events{
				Messages: func(_ domain.SessionID, st conversation.State) {
					select {
					case <-states:
					default:
					}
					states <- st.Messages()
				},
				Nudge: func(_ domain.SessionID, n domain.NudgeSignal) {
					select {
					case nudges <- n:
					default:
					}
				},
				Typing: func(sid domain.SessionID, on bool) {
					select {
					case typing <- typingChange{session: sid, on: on}:
					default:
					}
				},
			}

			lines := readLines(cmd.InOrStdin())
			return withRuntime(cmd, func(ctx context.Context) error {
				c := acct.Conversation(peer, events)
				c.Open()
				defer c.Close()

				sid, err := c.WaitSession(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, header(peerName, peer, sid))

				t := newTranscript(acct.Self, peerName)
				var latest []domain.Message
				var draft composer
				compose := func(sid domain.SessionID, line string) {
					text, done := draft.feed(line)
					if !done {
						c.Messages.SetTyping(sid, true)
						return
					}
					if _, err := c.Messages.SendText(ctx, sid, text); err != nil {
						fmt.Fprintln(out, errorStyle.Render("send failed: "+err.Error()))
					}
					c.Messages.SetTyping(sid, false)
				}
				for {
					select {
					case <-ctx.Done():
						return nil

					case msgs := <-states:
						latest = msgs
						for _, l := range t.update(msgs) {
							fmt.Fprintln(out, l)
						}
						markSeen(pair, acct.Self, msgs)

					case n := <-nudges:
						fmt.Fprintln(out, noticeStyle.Render(fmt.Sprintf("%s nudged you at %s",
							peerName, time.UnixMilli(n.Time).Format("15:04:05"))))

					case tc := <-typing:
						if tc.on {
							fmt.Fprintln(out, timeStyle.Render(peerName+" is typing…"))
						}

					case line, ok := <-lines:
						if !ok {
							return nil
						}
						sid := c.Session()
						switch cmdLine := strings.TrimSpace(line); {
						case draft.open():
							compose(sid, line)
						case cmdLine == "":
						case cmdLine == "/quit":
							return nil
						case cmdLine == "/older":
							for _, l := range t.older(latest) {
								fmt.Fprintln(out, l)
							}
						case cmdLine == "/nudge":
							if _, err := c.Messages.SendNudge(ctx, sid); err != nil {
								fmt.Fprintln(out, errorStyle.Render("nudge failed: "+err.Error()))
							}
						case strings.HasPrefix(cmdLine, "/"):
							fmt.Fprintln(out, errorStyle.Render("unknown command "+cmdLine))
						default:
							compose(sid, line)
						}
					}
				}
			})
		},
	}
}

// composer gathers continuation lines. A line ending in a backslash keeps the
// draft open, and the peer sees self typing until the draft is sent.
type composer struct {
	lines []string
}

func (c *composer) open() bool { return len(c.lines) > 0 }

// feed takes one input line and reports whether text is ready to send.
func (c *composer) feed(line string) (text string, done bool) {
	if rest, ok := strings.CutSuffix(line, "\\"); ok {
		c.lines = append(c.lines, rest)
		return "", false
	}
	if !c.open() {
		return line, true
	}
	text = strings.Join(append(c.lines, line), "\n")
	c.lines = nil
	return text, true
}

// markSeen advances the notification mark to the newest live message from
// the peer.
func markSeen(pair domain.PairID, self domain.Identity, msgs []domain.Message) {
	var newest int64
	for _, m := range msgs {
		if !m.IsLegacy && m.Sender != self && m.TimeRef > newest {
			newest = m.TimeRef
		}
	}
	if newest == 0 {
		return
	}
	if err := wire.Marks.MarkNotified(pair, time.UnixMilli(newest)); err != nil {
		wire.Log.Warn("save notification mark", zap.String("pair", pair.String()), zap.Error(err))
	}
}

// readLines streams r line by line until EOF.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}
