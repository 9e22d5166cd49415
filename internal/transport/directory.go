package transport

import (
	"strings"
	"sync"
)

// ChannelDirectory resolves channel names. Configured names win over chat
// titles learned from incoming messages. Names compare case-insensitively and
// ignore a leading '#'.
type ChannelDirectory struct {
	mu      sync.RWMutex
	static  map[string]int64
	learned map[string]int64
	titles  map[int64]string
}

func NewChannelDirectory(static map[string]int64) *ChannelDirectory {
	d := &ChannelDirectory{
		learned: map[string]int64{},
		titles:  map[int64]string{},
	}
	d.SetStatic(static)
	return d
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}

// SetStatic replaces the configured name -> chat id table (hot reload).
func (d *ChannelDirectory) SetStatic(static map[string]int64) {
	m := make(map[string]int64, len(static))
	for name, id := range static {
		if n := normalizeName(name); n != "" && id != 0 {
			m[n] = id
		}
	}
	d.mu.Lock()
	d.static = m
	d.mu.Unlock()
}

// Learn records the title of a chat the bot has seen a message in.
func (d *ChannelDirectory) Learn(chatID int64, title string) {
	n := normalizeName(title)
	if chatID == 0 || n == "" {
		return
	}
	d.mu.Lock()
	if old, ok := d.titles[chatID]; ok && old != n {
		delete(d.learned, old)
	}
	d.titles[chatID] = n
	d.learned[n] = chatID
	d.mu.Unlock()
}

func (d *ChannelDirectory) Resolve(name string) (ChatTarget, bool) {
	n := normalizeName(name)
	if n == "" {
		return ChatTarget{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id, ok := d.static[n]; ok {
		return ChatTarget{ChatID: id}, true
	}
	if id, ok := d.learned[n]; ok {
		return ChatTarget{ChatID: id}, true
	}
	return ChatTarget{}, false
}

// NameOf returns the channel name for a chat, or "" when unknown. When
// several configured names share the chat, the alphabetically first wins.
func (d *ChannelDirectory) NameOf(chatID int64) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	best := ""
	for name, id := range d.static {
		if id == chatID && (best == "" || name < best) {
			best = name
		}
	}
	if best != "" {
		return best
	}
	return d.titles[chatID]
}
