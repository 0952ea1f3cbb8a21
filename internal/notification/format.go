package notification

import (
	"html"
	"strings"
	"time"

	"github.com/smallbiznis/repairdesk/internal/request/domain"
)

const dateLayout = "02.01.2006 15:04"

// Format renders the staff message for sub. Optional fields appear only when
// non-empty; every user-supplied value is HTML-escaped.
func Format(sub domain.ValidatedSubmission, createdAt time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString("🔔 <b>Новая заявка с сайта</b>\n\n")
	writeLine(&b, "👤", "Имя", sub.Name)
	writeLine(&b, "📞", "Телефон", sub.Phone)
	if sub.Brand != "" {
		writeLine(&b, "🏷️", "Бренд", sub.Brand)
	}
	if sub.Problem != "" {
		writeLine(&b, "🔧", "Проблема", sub.Problem)
	}
	if sub.PreferredTime != "" {
		writeLine(&b, "⏰", "Удобное время", sub.PreferredTime)
	}
	b.WriteString("\n📅 <b>Дата:</b> ")
	b.WriteString(createdAt.In(loc).Format(dateLayout))
	return b.String()
}

func writeLine(b *strings.Builder, icon, label, value string) {
	b.WriteString(icon)
	b.WriteString(" <b>")
	b.WriteString(label)
	b.WriteString(":</b> ")
	b.WriteString(html.EscapeString(value))
	b.WriteString("\n")
}
