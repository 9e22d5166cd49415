package tgui

import "testing"

func TestHTMLHelpersEscape(t *testing.T) {
	tests := []struct {
		name string
		got  H
		want string
	}{
		{"bold", B("Kundun <3"), "<b>Kundun &lt;3</b>"},
		{"italic", I("a&b"), "<i>a&amp;b</i>"},
		{"code", Code("!boss <nazwa>"), "<code>!boss &lt;nazwa&gt;</code>"},
		{"raw", Raw("<b>x</b>"), "<b>x</b>"},
		{"join skips blanks", JoinH(" • ", B("a"), Esc(" "), Esc("b")), "<b>a</b> • b"},
		{"join empty", JoinH(", "), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.String() != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTruncRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Złoty Smok", 5, "Złoty…"},
		{"Złoty", 5, "Złoty"},
		{"abc", 0, ""},
		{"🐉🐉🐉", 2, "🐉🐉…"},
	}
	for _, tt := range tests {
		if got := TruncRunes(tt.in, tt.n); got != tt.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
