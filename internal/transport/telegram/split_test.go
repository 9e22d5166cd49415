package telegram

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitTextShortIsUntouched(t *testing.T) {
	got := splitText("💀 <b>Kundun</b>", 10, "HTML")
	if len(got) != 1 || got[0] != "💀 <b>Kundun</b>" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	line := strings.Repeat("a", 6)
	s := strings.Join([]string{line, line, line, line}, "\n")
	got := splitText(s, 14, "")
	for _, c := range got {
		if len([]rune(c)) > 14 {
			t.Fatalf("chunk too long: %q", c)
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk has stray newline: %q", c)
		}
	}
	if strings.Join(got, "\n") != s {
		t.Fatalf("chunks do not reassemble: %q", got)
	}
}

func TestSplitTextAvoidsBreakingTags(t *testing.T) {
	s := "aaaaaaa<b>bold</b>"
	got := splitText(s, 9, "HTML")
	if got[0] != "aaaaaaa" {
		t.Fatalf("first chunk = %q", got[0])
	}
	if strings.Join(got, "") != s {
		t.Fatalf("chunks = %q", got)
	}
}

func TestToMessage(t *testing.T) {
	if toMessage(nil) != nil {
		t.Fatal("nil message should map to nil")
	}
	m := toMessage(&tele.Message{
		ID:     7,
		Text:   "!timer",
		Chat:   &tele.Chat{ID: -100, Title: "resp-boss"},
		Sender: &tele.User{ID: 42, FirstName: "Ania", LastName: "K"},
	})
	if m.ChatID != -100 || m.ChatTitle != "resp-boss" || m.FromID != 42 || m.Author() != "Ania K" || m.IsBot {
		t.Fatalf("message = %+v", m)
	}
}
