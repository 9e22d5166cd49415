package transport

import "testing"

func TestChannelDirectoryStaticWinsOverLearned(t *testing.T) {
	d := NewChannelDirectory(map[string]int64{"resp-boss": -100})
	d.Learn(-200, "Resp-Boss")

	got, ok := d.Resolve("#resp-boss")
	if !ok || got.ChatID != -100 {
		t.Fatalf("Resolve = %+v,%v, want -100", got, ok)
	}
	if name := d.NameOf(-100); name != "resp-boss" {
		t.Fatalf("NameOf(-100) = %q", name)
	}
	if name := d.NameOf(-200); name != "resp-boss" {
		t.Fatalf("NameOf(-200) = %q", name)
	}
}

func TestChannelDirectorySharedChatName(t *testing.T) {
	d := NewChannelDirectory(map[string]int64{"resp-boss": -100, "eventy": -100, "logi": -100})
	for i := 0; i < 50; i++ {
		if name := d.NameOf(-100); name != "eventy" {
			t.Fatalf("NameOf(-100) = %q, want eventy", name)
		}
	}
}

func TestChannelDirectoryLearnRename(t *testing.T) {
	d := NewChannelDirectory(nil)
	d.Learn(-1, "eventy")
	if _, ok := d.Resolve("eventy"); !ok {
		t.Fatal("learned title should resolve")
	}

	d.Learn(-1, "eventy-old")
	if _, ok := d.Resolve("eventy"); ok {
		t.Fatal("old title should be forgotten after rename")
	}
	if got, ok := d.Resolve("EVENTY-OLD"); !ok || got.ChatID != -1 {
		t.Fatalf("Resolve renamed = %+v,%v", got, ok)
	}
}

func TestChannelDirectoryUnknown(t *testing.T) {
	d := NewChannelDirectory(map[string]int64{"": 5, "x": 0})
	for _, name := range []string{"", "x", "missing"} {
		if _, ok := d.Resolve(name); ok {
			t.Fatalf("Resolve(%q) should fail", name)
		}
	}
	if name := d.NameOf(42); name != "" {
		t.Fatalf("NameOf(42) = %q", name)
	}
}

func TestMessageAuthor(t *testing.T) {
	tests := []struct {
		msg  *Message
		want string
	}{
		{nil, ""},
		{&Message{FromUsername: "ola", FromName: "Ola"}, "ola"},
		{&Message{FromName: "Ola"}, "Ola"},
		{&Message{}, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.msg.Author(); got != tt.want {
			t.Fatalf("Author() = %q, want %q", got, tt.want)
		}
	}
}
