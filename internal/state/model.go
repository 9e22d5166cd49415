package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// NormalizeTime accepts "HH:MM" or "HH;MM" and returns the canonical "HH:MM".
func NormalizeTime(s string) (string, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ";", ":")
	if !timeRe.MatchString(s) {
		return "", false
	}
	return s, true
}

// ParseHHMM parses a time string after normalization.
func ParseHHMM(s string) (hour, minute int, ok bool) {
	n, ok := NormalizeTime(s)
	if !ok {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(n[:2])
	minute, _ = strconv.Atoi(n[3:])
	return hour, minute, true
}

type BossTimer struct {
	Name      string    `json:"name"`
	Map       string    `json:"map"`
	RespawnAt time.Time `json:"respawn"`
	AddedBy   string    `json:"addedBy"`
}

// Terminal reports whether the boss has respawned at now.
func (b BossTimer) Terminal(now time.Time) bool { return !b.RespawnAt.After(now) }

// Series is a named daily event with its trigger times in insertion order.
type Series struct {
	Name  string
	Times []string
}

// Events is an insertion-ordered name -> times mapping. It encodes as a JSON
// object and keeps key order across a save/load round trip.
type Events []Series

func (ev Events) index(name string) int {
	for i := range ev {
		if ev[i].Name == name {
			return i
		}
	}
	return -1
}

// Times returns the times stored for name.
func (ev Events) Times(name string) ([]string, bool) {
	i := ev.index(name)
	if i < 0 {
		return nil, false
	}
	return ev[i].Times, true
}

// Add appends hhmm to the series, creating it if needed. It reports whether
// anything changed.
func (ev *Events) Add(name, hhmm string) bool {
	i := ev.index(name)
	if i < 0 {
		*ev = append(*ev, Series{Name: name, Times: []string{hhmm}})
		return true
	}
	for _, t := range (*ev)[i].Times {
		if t == hhmm {
			return false
		}
	}
	(*ev)[i].Times = append((*ev)[i].Times, hhmm)
	return true
}

// RemoveTime drops one time from a series; an emptied series is deleted.
func (ev *Events) RemoveTime(name, hhmm string) bool {
	i := ev.index(name)
	if i < 0 {
		return false
	}
	times := (*ev)[i].Times
	kept := make([]string, 0, len(times))
	for _, t := range times {
		if t != hhmm {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(times) {
		return false
	}
	if len(kept) == 0 {
		return ev.Delete(name)
	}
	(*ev)[i].Times = kept
	return true
}

// Delete removes the whole series.
func (ev *Events) Delete(name string) bool {
	i := ev.index(name)
	if i < 0 {
		return false
	}
	*ev = append((*ev)[:i], (*ev)[i+1:]...)
	return true
}

func (ev Events) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range ev {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		times := s.Times
		if times == nil {
			times = []string{}
		}
		v, err := json.Marshal(times)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (ev *Events) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*ev = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("events: expected object, got %v", tok)
	}
	out := Events{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := kt.(string)
		var times []string
		if err := dec.Decode(&times); err != nil {
			return fmt.Errorf("events %q: %w", name, err)
		}
		if i := out.index(name); i >= 0 {
			out[i].Times = times
			continue
		}
		out = append(out, Series{Name: name, Times: times})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*ev = out
	return nil
}

// Document is the persisted state.
type Document struct {
	Bosses []BossTimer `json:"bosses"`
	Events Events      `json:"events"`
}

func Empty() Document {
	return Document{Bosses: []BossTimer{}, Events: Events{}}
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{
		Bosses: append([]BossTimer{}, d.Bosses...),
		Events: make(Events, 0, len(d.Events)),
	}
	for _, s := range d.Events {
		out.Events = append(out.Events, Series{Name: s.Name, Times: append([]string{}, s.Times...)})
	}
	return out
}

// ActiveBosses returns the non-terminal bosses at now.
func (d Document) ActiveBosses(now time.Time) []BossTimer {
	out := make([]BossTimer, 0, len(d.Bosses))
	for _, b := range d.Bosses {
		if !b.Terminal(now) {
			out = append(out, b)
		}
	}
	return out
}

// RemoveBosses drops every boss whose name matches case-insensitively.
func (d *Document) RemoveBosses(name string) int {
	kept := d.Bosses[:0]
	removed := 0
	for _, b := range d.Bosses {
		if strings.EqualFold(b.Name, name) {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	d.Bosses = kept
	return removed
}

// RemoveTerminal drops bosses whose respawn is at or before now.
func (d *Document) RemoveTerminal(now time.Time) int {
	kept := d.Bosses[:0]
	removed := 0
	for _, b := range d.Bosses {
		if b.Terminal(now) {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	d.Bosses = kept
	return removed
}

// normalize rewrites stored times to canonical form and drops what cannot be
// repaired: invalid or duplicate times, empty series, unnamed bosses.
// It returns the number of dropped entries.
func (d *Document) normalize() int {
	dropped := 0
	if d.Bosses == nil {
		d.Bosses = []BossTimer{}
	}
	bosses := d.Bosses[:0]
	for _, b := range d.Bosses {
		if strings.TrimSpace(b.Name) == "" || b.RespawnAt.IsZero() {
			dropped++
			continue
		}
		bosses = append(bosses, b)
	}
	d.Bosses = bosses

	events := Events{}
	for _, s := range d.Events {
		seen := map[string]bool{}
		times := make([]string, 0, len(s.Times))
		for _, raw := range s.Times {
			t, ok := NormalizeTime(raw)
			if !ok || seen[t] {
				dropped++
				continue
			}
			seen[t] = true
			times = append(times, t)
		}
		if strings.TrimSpace(s.Name) == "" || len(times) == 0 {
			dropped++
			continue
		}
		events = append(events, Series{Name: s.Name, Times: times})
	}
	d.Events = events
	return dropped
}
