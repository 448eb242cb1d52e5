package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pairchat/internal/crypto"
	"pairchat/internal/domain"
	"pairchat/internal/window"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	peerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	timeStyle   = lipgloss.NewStyle().Faint(true)
	legacyStyle = lipgloss.NewStyle().Faint(true)
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// transcript prints a conversation incrementally.
type transcript struct {
	self     domain.Identity
	peerName string
	win      window.Window
	printed  map[string]bool
}

func newTranscript(self domain.Identity, peerName string) *transcript {
	return &transcript{self: self, peerName: peerName, printed: make(map[string]bool)}
}

// update returns the lines for visible messages not printed yet.
func (t *transcript) update(msgs []domain.Message) []string {
	var out []string
	for _, m := range t.win.Visible(msgs) {
		if t.printed[m.ID] {
			continue
		}
		t.printed[m.ID] = true
		out = append(out, t.line(m))
	}
	return out
}

// older widens the window and returns a reprint of everything visible.
func (t *transcript) older(msgs []domain.Message) []string {
	if !t.win.HasOlder(msgs) {
		return []string{noticeStyle.Render("(no older messages)")}
	}
	t.win = t.win.LoadOlder()
	t.printed = make(map[string]bool)
	out := []string{headerStyle.Render("── history ──")}
	out = append(out, t.update(msgs)...)
	if t.win.HasOlder(msgs) {
		out = append(out, noticeStyle.Render("(/older for more)"))
	}
	return out
}

func (t *transcript) line(m domain.Message) string {
	who := peerStyle.Render(t.peerName)
	if m.Sender == t.self {
		who = selfStyle.Render("you")
	}
	at := timeStyle.Render(time.UnixMilli(m.TimeRef).Format("15:04"))

	var body string
	switch {
	case m.Type == domain.MessageNudge:
		body = noticeStyle.Render("*nudge*")
	case m.Type.IsGame():
		body = noticeStyle.Render(fmt.Sprintf("[%s] %s", m.Type, m.Content))
	default:
		body = m.Content
	}
	line := fmt.Sprintf("%s %s: %s", at, who, body)
	if m.IsLegacy {
		return legacyStyle.Render(line)
	}
	return line
}

func header(peerName string, peer domain.Identity, sid domain.SessionID) string {
	fp, _ := crypto.FingerprintIdentity(peer)
	var b strings.Builder
	b.WriteString(headerStyle.Render("chat with " + peerName))
	b.WriteString("\n")
	b.WriteString(timeStyle.Render(fmt.Sprintf("fingerprint %s · session %s", crypto.FormatFingerprint(fp), sid)))
	b.WriteString("\n")
	b.WriteString(timeStyle.Render("/nudge  /older  /quit"))
	return b.String()
}
