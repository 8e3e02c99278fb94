// Package notify delivers spike, trend and risk alerts to operators.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/normalization"
)

// Kind classifies an alert.
type Kind string

const (
	KindGrievanceSpike Kind = "GRIEVANCE_SPIKE"
	KindPRGITrend      Kind = "PRGI_TREND"
	KindCriticalRisk   Kind = "CRITICAL_RISK"
)

// Alert is one operator-facing event.
type Alert struct {
	Kind     Kind
	District string // empty for state-level alerts
	Month    time.Time
	Value    float64 // count, PRGI or average PRGI depending on Kind
	Baseline float64 // threshold or mean the value was compared against
}

// FromSpike builds a grievance spike alert.
func FromSpike(f domain.SpikeFlag) Alert {
	return Alert{
		Kind:     KindGrievanceSpike,
		District: f.District,
		Month:    f.Month,
		Value:    float64(f.Signals),
		Baseline: f.Baseline,
	}
}

// FromTrend builds a PRGI trend alert.
func FromTrend(a domain.TrendAlert) Alert {
	return Alert{
		Kind:     KindPRGITrend,
		District: a.District,
		Month:    a.Month,
		Value:    a.Latest,
		Baseline: a.RecentMean,
	}
}

// FromRisk builds a critical-risk alert for a leaderboard entry.
func FromRisk(e domain.RiskEntry, critical float64) Alert {
	return Alert{
		Kind:     KindCriticalRisk,
		District: e.District,
		Value:    e.AvgPRGI,
		Baseline: critical,
	}
}

// Summary renders the alert as one plain-text line.
func (a Alert) Summary() string {
	where := "State"
	if a.District != "" {
		where = normalization.TitleCase(a.District)
	}
	switch a.Kind {
	case KindGrievanceSpike:
		return fmt.Sprintf("%s %s: %.0f grievances vs baseline %.1f",
			where, a.Month.Format(domain.MonthLayout), a.Value, a.Baseline)
	case KindPRGITrend:
		return fmt.Sprintf("%s %s: PRGI %.1f%% vs recent mean %.1f%%",
			where, a.Month.Format(domain.MonthLayout), a.Value*100, a.Baseline*100)
	case KindCriticalRisk:
		return fmt.Sprintf("%s: 3-month avg PRGI %.1f%% above %.0f%%", where, a.Value*100, a.Baseline*100)
	default:
		return fmt.Sprintf("%s: %s", where, a.Kind)
	}
}

// Notifier delivers a batch of alerts.
type Notifier interface {
	Send(ctx context.Context, alerts []Alert) error
}

// Noop discards alerts.
type Noop struct{}

// Send does nothing.
func (Noop) Send(context.Context, []Alert) error { return nil }

// Recorder keeps every batch it receives. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	batches [][]Alert
}

// Send records the batch.
func (r *Recorder) Send(_ context.Context, alerts []Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]Alert(nil), alerts...))
	return nil
}

// Alerts returns every recorded alert in arrival order.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Alert
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

// Batches returns the number of Send calls.
func (r *Recorder) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

var kindTitles = map[Kind]string{
	KindGrievanceSpike: "Grievance spikes",
	KindPRGITrend:      "Delivery gap trend alerts",
	KindCriticalRisk:   "Critical risk districts",
}

var kindOrder = []Kind{KindCriticalRisk, KindPRGITrend, KindGrievanceSpike}

// formatMessage groups alerts by kind into a MarkdownV2 message.
func formatMessage(alerts []Alert, at time.Time) string {
	var sb strings.Builder
	sb.WriteString("🚨 *PDS delivery alerts*\n\n")
	sb.WriteString(fmt.Sprintf("📅 Run: %s\n\n", escapeMarkdownV2(at.Format("2006-01-02 15:04"))))

	for _, kind := range kindOrder {
		var lines []string
		for _, a := range alerts {
			if a.Kind == kind {
				lines = append(lines, a.Summary())
			}
		}
		if len(lines) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdownV2(kindTitles[kind])))
		for i, l := range lines {
			sb.WriteString(fmt.Sprintf("%d\\. %s\n", i+1, escapeMarkdownV2(l)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// escapeMarkdownV2 escapes Telegram MarkdownV2 special characters.
func escapeMarkdownV2(text string) string {
	var sb strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			sb.WriteByte('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}
