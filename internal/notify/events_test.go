package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/whaletrack/engine/internal/domain"
)

type recordSender struct {
	titles []string
	fail   bool
}

func (r *recordSender) Send(_ context.Context, title, _ string) error {
	if r.fail {
		return io.ErrUnexpectedEOF
	}
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordSender) Name() string { return "record" }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordSender{}
	n := NewNotifier([]Sender{s}, []string{EventWhaleAlert}, discard())

	if err := n.Notify(context.Background(), EventTradeOpened, "skip", "x"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.Notify(context.Background(), EventWhaleAlert, "keep", "x"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(s.titles) != 1 || s.titles[0] != "keep" {
		t.Fatalf("delivered titles = %v, want [keep]", s.titles)
	}
}

func TestNotifierEmptyEventListAllowsAll(t *testing.T) {
	s := &recordSender{}
	n := NewNotifier([]Sender{s}, nil, discard())

	if err := n.Notify(context.Background(), "anything", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.titles) != 1 {
		t.Fatalf("delivered %d, want 1", len(s.titles))
	}
}

func TestNotifierFailedSenderDoesNotBlockOthers(t *testing.T) {
	bad := &recordSender{fail: true}
	good := &recordSender{}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), "e", "t", "m")
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(good.titles) != 1 {
		t.Fatalf("healthy sender delivered %d, want 1", len(good.titles))
	}
}

func TestFormatWhaleAlert(t *testing.T) {
	rec := domain.Recommendation{
		Question:     "Will the Fed cut rates?",
		Direction:    domain.DirectionYes,
		WhaleScore:   82,
		Confidence:   domain.ConfidenceHigh,
		SignalsFired: []domain.SignalKind{domain.SignalVolumeSpike, domain.SignalSmartMoney},
		Price:        0.63,
		Volume:       1_200_000,
	}

	title, body := FormatWhaleAlert(rec)
	if !strings.Contains(title, "82") {
		t.Errorf("title missing score: %q", title)
	}
	if !strings.Contains(body, "Will the Fed cut rates?") {
		t.Errorf("body missing question: %q", body)
	}
	if !strings.Contains(body, string(domain.SignalVolumeSpike)) {
		t.Errorf("body missing signal list: %q", body)
	}
}

func TestFormatTradeClosedSign(t *testing.T) {
	pnl := -12.5
	exit := 0.35
	t1 := domain.PaperTrade{Question: "Q", Direction: domain.DirectionYes, EntryPrice: 0.40, PnL: &pnl, ExitPrice: &exit}

	title, _ := FormatTradeClosed(t1)
	if !strings.Contains(title, "-12.50") {
		t.Errorf("title missing pnl: %q", title)
	}
}
