package service

import (
	"fmt"
	"strings"

	"signal_bot/internal/models"
)

const clockLayout = "15:04:05"

func formatStatus(st models.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*📊 Статус*: `%s`\n", st.State)
	if st.VerifyRetry > 0 {
		fmt.Fprintf(&b, "Повтор проверки: `%d`\n", st.VerifyRetry)
	}

	b.WriteString("\n*Цепочки*\n")
	if len(st.Chains) == 0 {
		b.WriteString("  нет\n")
	}
	for _, ch := range st.Chains {
		fmt.Fprintf(&b, "  %s %s ур.%d `%s` в %s UTC, ещё %d\n",
			escape(ch.Pair), ch.Direction, ch.Level, ch.Status,
			ch.NextFireAt.UTC().Format(clockLayout), ch.RemainingLevels)
	}

	b.WriteString("\n*Последние сделки*\n")
	if len(st.LastOutcomes) == 0 {
		b.WriteString("  нет\n")
	}
	for _, o := range st.LastOutcomes {
		fmt.Fprintf(&b, "  %s %s %s ур.%d `%s`\n",
			outcomeIcon(o.Status), o.UpdatedAt.UTC().Format(clockLayout),
			escape(o.Pair), o.Level, o.Status)
	}
	return b.String()
}

// formatEvent возвращает пустую строку, если событие не для оператора.
func formatEvent(ev models.Event) string {
	switch ev.Kind {
	case models.EventTransition:
		return fmt.Sprintf("🔁 `%s` → `%s`\n%s", ev.From, ev.To, escape(ev.Message))
	case models.EventOrder:
		o := ev.Order
		if o == nil || !o.Status.Terminal() {
			return ""
		}
		line := fmt.Sprintf("%s %s %s ур.%d: `%s`", outcomeIcon(o.Status), escape(o.Pair), o.Direction, o.Level, o.Status)
		if o.Reason != "" {
			line += "\n" + escape(o.Reason)
		}
		return line
	case models.EventAdapter:
		if ev.Severity == models.SeverityError {
			return "⚠️ " + escape(ev.Message)
		}
	}
	return ""
}

func outcomeIcon(st models.OrderStatus) string {
	switch st {
	case models.OrderResultWon:
		return "✅"
	case models.OrderResultLost:
		return "❌"
	case models.OrderResultUnknown:
		return "❔"
	case models.OrderFailed:
		return "⛔️"
	}
	return "⏳"
}
