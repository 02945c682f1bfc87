package notify

import (
	"fmt"
	"strings"

	"github.com/whaletrack/engine/internal/domain"
)

// Event types dispatched by the poll loop. The notifier's allow-list filters
// on these names.
const (
	EventWhaleAlert  = "whale_alert"
	EventTradeOpened = "trade_opened"
	EventTradeClosed = "trade_closed"
	EventPerformance = "performance"
)

// FormatWhaleAlert renders a high-confidence recommendation as an alert
// message. Returns the title and body.
func FormatWhaleAlert(rec domain.Recommendation) (string, string) {
	title := fmt.Sprintf("🐋 Whale Alert: %s %d", rec.Confidence, rec.WhaleScore)

	fired := make([]string, len(rec.SignalsFired))
	for i, k := range rec.SignalsFired {
		fired[i] = string(k)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rec.Question)
	fmt.Fprintf(&b, "Direction: %s @ %.2f\n", rec.Direction, rec.Price)
	fmt.Fprintf(&b, "Signals: %s\n", strings.Join(fired, ", "))
	fmt.Fprintf(&b, "Volume: $%.0f", rec.Volume)
	return title, b.String()
}

// FormatTradeOpened renders a paper-trade entry message.
func FormatTradeOpened(t domain.PaperTrade) (string, string) {
	title := "📈 Paper Trade Opened"
	body := fmt.Sprintf("%s\n%s @ %.2f, stake %.0f (score %d)",
		t.Question, t.Direction, t.EntryPrice, t.Stake, t.EntryScore)
	return title, body
}

// FormatTradeClosed renders a paper-trade exit message.
func FormatTradeClosed(t domain.PaperTrade) (string, string) {
	var pnl, exit float64
	if t.PnL != nil {
		pnl = *t.PnL
	}
	if t.ExitPrice != nil {
		exit = *t.ExitPrice
	}

	emoji := "✅"
	if pnl <= 0 {
		emoji = "❌"
	}
	title := fmt.Sprintf("%s Paper Trade Closed: %+.2f", emoji, pnl)
	body := fmt.Sprintf("%s\n%s %.2f -> %.2f",
		t.Question, t.Direction, t.EntryPrice, exit)
	return title, body
}

// FormatPerformance renders a periodic ledger summary.
func FormatPerformance(stats domain.TradeStats) (string, string) {
	title := "📊 Paper Trading Performance"
	var b strings.Builder
	fmt.Fprintf(&b, "Trades: %d (W %d / L %d, %.1f%%)\n",
		stats.TotalTrades, stats.WinningTrades, stats.LosingTrades, stats.WinRate)
	fmt.Fprintf(&b, "Total PnL: %+.2f (avg %+.2f)\n", stats.TotalPnL, stats.AvgPnL)
	fmt.Fprintf(&b, "High-score win rate: %.1f%% over %d trades",
		stats.HighScoreWinRate, stats.HighScoreTrades)
	return title, b.String()
}
