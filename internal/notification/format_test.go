package notification

import (
	"testing"
	"time"

	"github.com/smallbiznis/repairdesk/internal/request/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFullSubmission(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	msg := Format(domain.ValidatedSubmission{
		Name:          "Ivan",
		Phone:         "+79990000000",
		Brand:         "LG",
		Problem:       "no cooling",
		PreferredTime: "evening",
	}, time.Date(2025, 5, 17, 9, 30, 0, 0, time.UTC), loc)

	want := "🔔 <b>Новая заявка с сайта</b>\n\n" +
		"👤 <b>Имя:</b> Ivan\n" +
		"📞 <b>Телефон:</b> +79990000000\n" +
		"🏷️ <b>Бренд:</b> LG\n" +
		"🔧 <b>Проблема:</b> no cooling\n" +
		"⏰ <b>Удобное время:</b> evening\n" +
		"\n📅 <b>Дата:</b> 17.05.2025 12:30"
	assert.Equal(t, want, msg)
}

func TestFormatOmitsEmptyOptionalLines(t *testing.T) {
	msg := Format(domain.ValidatedSubmission{Name: "Anna", Phone: "123"}, time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC), nil)

	assert.NotContains(t, msg, "Бренд")
	assert.NotContains(t, msg, "Проблема")
	assert.NotContains(t, msg, "Удобное время")
	assert.Contains(t, msg, "02.01.2025 03:04")
}

func TestFormatEscapesUserInput(t *testing.T) {
	msg := Format(domain.ValidatedSubmission{
		Name:    `<script>alert("x")</script>`,
		Phone:   "1 & 2",
		Problem: "<b>loud</b>",
	}, time.Now(), time.UTC)

	assert.Contains(t, msg, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;")
	assert.Contains(t, msg, "1 &amp; 2")
	assert.Contains(t, msg, "&lt;b&gt;loud&lt;/b&gt;")
	assert.NotContains(t, msg, "<script>")
}
