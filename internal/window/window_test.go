package window_test

import (
	"strconv"
	"testing"

	"pairchat/internal/domain"
	"pairchat/internal/window"
)

func history(legacy, live int) []domain.Message {
	var out []domain.Message
	for i := 0; i < legacy; i++ {
		out = append(out, domain.Message{ID: "old" + strconv.Itoa(i), TimeRef: int64(i), IsLegacy: true})
	}
	for i := 0; i < live; i++ {
		out = append(out, domain.Message{ID: "new" + strconv.Itoa(i), TimeRef: int64(1000 + i)})
	}
	return out
}

func TestVisibleCount(t *testing.T) {
	tests := []struct {
		name                   string
		total, nonLegacy, more int
		want                   int
	}{
		{"thirty legacy ten live", 40, 10, 0, 15},
		{"fewer than context", 3, 0, 0, 3},
		{"all live", 12, 12, 0, 12},
		{"empty", 0, 0, 0, 0},
		{"one step older", 40, 10, 25, 40},
		{"step capped by total", 100, 10, 25, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window.VisibleCount(tt.total, tt.nonLegacy, tt.more); got != tt.want {
				t.Fatalf("VisibleCount(%d,%d,%d) = %d, want %d", tt.total, tt.nonLegacy, tt.more, got, tt.want)
			}
		})
	}
}

func TestWindow_VisibleIsTail(t *testing.T) {
	msgs := history(30, 10)
	var w window.Window

	vis := w.Visible(msgs)
	if len(vis) != 15 {
		t.Fatalf("visible = %d, want 15", len(vis))
	}
	if vis[0].ID != "old25" || vis[len(vis)-1].ID != "new9" {
		t.Fatalf("unexpected slice %s..%s", vis[0].ID, vis[len(vis)-1].ID)
	}
	if !w.HasOlder(msgs) {
		t.Fatal("expected older history to be available")
	}

	w = w.LoadOlder()
	if got := len(w.Visible(msgs)); got != 40 {
		t.Fatalf("after load older visible = %d, want 40", got)
	}
	if w.HasOlder(msgs) {
		t.Fatal("nothing older should remain")
	}
}

func TestWindow_ShouldAutoScroll(t *testing.T) {
	var w window.Window
	if !w.ShouldAutoScroll(500, window.DefaultBottomThreshold) {
		t.Fatal("fresh window should follow new messages")
	}
	w = w.LoadOlder()
	if w.ShouldAutoScroll(500, window.DefaultBottomThreshold) {
		t.Fatal("auto-scroll should be suppressed after loading older history")
	}
	if !w.ShouldAutoScroll(10, window.DefaultBottomThreshold) {
		t.Fatal("auto-scroll should resume near the bottom")
	}
}
