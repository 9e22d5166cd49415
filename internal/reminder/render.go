package reminder

import (
	"fmt"
	"strings"
	"time"

	"bosstimer/internal/clock"
	"bosstimer/internal/state"
	"bosstimer/pkg/tgui"
)

const (
	BossEmoji         = "💀"
	DefaultEventEmoji = "🎉"
)

var eventEmoji = map[string]string{
	"rabbit invasion":              "🐰",
	"golden invasion":              "💰",
	"magic treasure":               "✨",
	"kanturu domination":           "⚔️",
	"great golden dragon invasion": "🐉",
	"death king":                   "💀",
	"white wizard":                 "🧙‍♂️",
}

// EventEmoji returns the emoji shown next to a known event name.
func EventEmoji(name string) string {
	if e, ok := eventEmoji[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e
	}
	return DefaultEventEmoji
}

func b(s string) string { return tgui.B(s).String() }

func RenderBossReminder(boss state.BossTimer, lead time.Duration, loc *time.Location) string {
	return fmt.Sprintf("⏳ Przypomnienie: boss za %d minut\n%s %s na %s o %s",
		int(lead/time.Minute), BossEmoji, b(boss.Name), b(boss.Map), clock.FormatHM(boss.RespawnAt, loc))
}

func RenderBossSpawn(boss state.BossTimer) string {
	return fmt.Sprintf("⚔️ BOSS WSTAŁ!\n🔥 %s na %s właśnie się pojawił!", b(boss.Name), b(boss.Map))
}

func RenderEventReminder(name, hhmm string, lead time.Duration) string {
	return fmt.Sprintf("%s Event za %d minut!\n🎯 %s o %s", EventEmoji(name), int(lead/time.Minute), b(name), hhmm)
}

func RenderEventStart(name, hhmm string) string {
	return fmt.Sprintf("%s Event rozpoczęty!\n🎉 %s właśnie się rozpoczął o %s", EventEmoji(name), b(name), hhmm)
}

// RenderBossReport lists bosses in respawn order.
func RenderBossReport(bosses []state.BossTimer, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("📊 Raport bossów (co 6h)\n")
	if len(bosses) == 0 {
		sb.WriteString("Brak aktywnych bossów.")
		return sb.String()
	}
	for i, boss := range bosses {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s %s (%s) — %s", BossEmoji, b(boss.Name), tgui.Esc(boss.Map), clock.FormatHM(boss.RespawnAt, loc))
	}
	return sb.String()
}

func RenderEventReport(events state.Events) string {
	var sb strings.Builder
	sb.WriteString("📅 Raport eventów (co 6h)\n")
	if len(events) == 0 {
		sb.WriteString("Brak zapisanych eventów.")
		return sb.String()
	}
	for i, s := range events {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "🎯 %s — %s", b(s.Name), strings.Join(s.Times, ", "))
	}
	return sb.String()
}

func VaultReminderText() string {
	return "💰 <b>Proszę o wpłacenie zen na Guild Valut !</b>"
}
