package commands

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Prefix starts every command; it is matched case-sensitively.
const Prefix = "!"

// tokenizeCommandLine splits command text into tokens while supporting quotes.
// Examples:
//
//	!event "Rabbit Invasion" 15:23
func tokenizeCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
		quote bool // current token was quoted, keep it even when empty
	)
	flush := func() {
		if buf.Len() > 0 || quote {
			out = append(out, buf.String())
			buf.Reset()
		}
		quote = false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if esc {
			buf.WriteByte(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteByte(ch)
			continue
		}
		switch ch {
		case '"', '\'':
			inQ = true
			qChar = ch
			quote = true
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

// parseCommand returns the lower-cased command word (without prefix) and the
// remaining arguments. ok is false when text is not a command.
func parseCommand(text string) (cmd string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, Prefix) {
		return "", nil, false
	}
	toks := tokenizeCommandLine(strings.TrimPrefix(text, Prefix))
	if len(toks) == 0 || toks[0] == "" {
		return "", nil, false
	}
	return strings.ToLower(toks[0]), toks[1:], true
}

var durationRe = regexp.MustCompile(`(?i)^\+(?:(\d+)h)?(?:(\d+)m)?$`)

// MaxRespawn bounds accepted respawn durations.
const MaxRespawn = 1000 * time.Hour

// ParseRespawnDuration parses "+Xh", "+Xm" or "+XhYm". The result is positive
// and at most MaxRespawn.
func ParseRespawnDuration(s string) (time.Duration, bool) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, false
	}
	var d time.Duration
	if m[1] != "" {
		h, err := strconv.Atoi(m[1])
		if err != nil || h > int(MaxRespawn/time.Hour) {
			return 0, false
		}
		d += time.Duration(h) * time.Hour
	}
	if m[2] != "" {
		mm, err := strconv.Atoi(m[2])
		if err != nil || mm > int(MaxRespawn/time.Minute) {
			return 0, false
		}
		d += time.Duration(mm) * time.Minute
	}
	if d <= 0 || d > MaxRespawn {
		return 0, false
	}
	return d, true
}
