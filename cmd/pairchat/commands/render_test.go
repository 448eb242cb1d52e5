package commands

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pairchat/internal/domain"
	"pairchat/internal/window"
)

func history(self, peer domain.Identity, legacy, live int) []domain.Message {
	var msgs []domain.Message
	for i := 0; i < legacy+live; i++ {
		sender := peer
		if i%2 == 1 {
			sender = self
		}
		msgs = append(msgs, domain.Message{
			ID:       fmt.Sprintf("m%03d", i),
			Sender:   sender,
			Content:  fmt.Sprintf("text %d", i),
			TimeRef:  int64(1_700_000_000_000 + i*1000),
			Type:     domain.MessageChat,
			IsLegacy: i < legacy,
		})
	}
	return msgs
}

func TestTranscript_PrintsWindowOnce(t *testing.T) {
	self, peer := domain.Identity("self-identity"), domain.Identity("peer-identity")
	msgs := history(self, peer, 40, 3)
	tr := newTranscript(self, "bob")

	lines := tr.update(msgs)
	require.Len(t, lines, window.LegacyContext+3)
	require.Contains(t, lines[0], "text 35")
	require.Contains(t, lines[len(lines)-1], "text 42")
	require.Contains(t, lines[len(lines)-1], "bob")
	require.Contains(t, lines[len(lines)-2], "you")

	require.Empty(t, tr.update(msgs), "nothing new")

	msgs = append(msgs, domain.Message{ID: "m999", Sender: peer, TimeRef: 1_800_000_000_000, Type: domain.MessageNudge})
	lines = tr.update(msgs)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "*nudge*")
}

func TestTranscript_Older(t *testing.T) {
	self, peer := domain.Identity("self-identity"), domain.Identity("peer-identity")
	msgs := history(self, peer, 40, 3)
	tr := newTranscript(self, "bob")
	tr.update(msgs)

	lines := tr.older(msgs)
	require.Contains(t, lines[0], "history")
	require.Contains(t, lines[1], "text 10")
	require.Contains(t, lines[len(lines)-1], "/older for more")

	lines = tr.older(msgs)
	require.Contains(t, lines[1], "text 0")
	require.NotContains(t, lines[len(lines)-1], "/older for more")

	lines = tr.older(msgs)
	require.Equal(t, []string{noticeStyle.Render("(no older messages)")}, lines)
}

func TestTranscript_GamePayloadShownVerbatim(t *testing.T) {
	self, peer := domain.Identity("self-identity"), domain.Identity("peer-identity")
	tr := newTranscript(self, "bob")
	lines := tr.update([]domain.Message{{ID: "g", Sender: peer, Content: `{"game":"tictactoe"}`, TimeRef: 1, Type: domain.MessageGameInvite}})
	require.Len(t, lines, 1)
	require.True(t, strings.Contains(lines[0], `[gameinvite] {"game":"tictactoe"}`), lines[0])
}

func TestComposer_ContinuationLines(t *testing.T) {
	var c composer

	text, done := c.feed("hello")
	require.True(t, done)
	require.Equal(t, "hello", text)
	require.False(t, c.open())

	_, done = c.feed("first\\")
	require.False(t, done)
	require.True(t, c.open())

	_, done = c.feed("/quit\\")
	require.False(t, done, "commands inside a draft are text")

	text, done = c.feed("last")
	require.True(t, done)
	require.Equal(t, "first\n/quit\nlast", text)
	require.False(t, c.open())
}
