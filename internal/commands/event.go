package commands

import (
	"context"
	"fmt"
	"strings"

	"bosstimer/internal/reminder"
	"bosstimer/internal/state"
)

const (
	eventUsage    = "❌ Użycie: <code>!event &lt;nazwa&gt; &lt;HH:MM&gt;</code> (np. <code>!event Rabbit Invasion 15:23</code>)"
	badTime       = "❌ Niepoprawny format czasu. Użyj HH:MM (24h)."
	timeExists    = "ℹ️ Ta godzina już istnieje dla tego eventu."
	delEventUsage = "❌ Użycie: <code>!delevent &lt;nazwa&gt; &lt;HH:MM&gt;</code> lub <code>!delevent &lt;nazwa&gt;</code> aby usunąć cały event"
	eventNotFound = "❌ Nie znaleziono takiego eventu."
	noEvents      = "📭 Brak zapisanych eventów."
)

func (r *Router) eventCommands() []Command {
	return []Command{
		{Name: "event", Scope: ScopeEvent, Usage: "!event <nazwa> <HH:MM>", Handle: r.cmdEvent},
		{Name: "delevent", Scope: ScopeEvent, Usage: "!delevent <nazwa> [HH:MM]", Handle: r.cmdDelEvent},
		{Name: "eventlist", Aliases: []string{"listevent", "events"}, Scope: ScopeEvent, Usage: "!eventlist", Handle: r.cmdEventList},
	}
}

// seriesName returns the stored spelling of name (case-insensitive match),
// or name itself when no such series exists.
func seriesName(ev state.Events, name string) (string, bool) {
	for _, s := range ev {
		if strings.EqualFold(s.Name, name) {
			return s.Name, true
		}
	}
	return name, false
}

// cmdEvent: the last argument is the time, everything before it the name.
func (r *Router) cmdEvent(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return r.usage(ctx, req, eventUsage)
	}
	n := len(req.Args)
	hhmm, ok := state.NormalizeTime(req.Args[n-1])
	if !ok {
		return r.usage(ctx, req, badTime)
	}
	name := strings.TrimSpace(strings.Join(req.Args[:n-1], " "))
	if name == "" {
		return r.usage(ctx, req, eventUsage)
	}

	added := false
	r.store.Mutate(func(d *state.Document) bool {
		name, _ = seriesName(d.Events, name)
		added = d.Events.Add(name, hhmm)
		return added
	})
	if !added {
		r.reply(ctx, req, timeExists)
		return nil
	}
	r.record(ctx, req, "event.add", name+" "+hhmm, nil)
	r.reply(ctx, req, fmt.Sprintf("✅ Dodano event\n🎯 %s o godzinie %s", b(name), hhmm))
	return nil
}

// cmdDelEvent removes one time when the last argument parses as HH:MM and a
// name precedes it; otherwise all arguments form the name and the whole series goes.
func (r *Router) cmdDelEvent(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		return r.usage(ctx, req, delEventUsage)
	}
	n := len(req.Args)
	hhmm, hasTime := "", false
	if n >= 2 {
		hhmm, hasTime = state.NormalizeTime(req.Args[n-1])
	}
	nameArgs := req.Args
	if hasTime {
		nameArgs = req.Args[:n-1]
	}
	name := strings.TrimSpace(strings.Join(nameArgs, " "))

	removed := false
	r.store.Mutate(func(d *state.Document) bool {
		stored, found := seriesName(d.Events, name)
		if !found {
			return false
		}
		name = stored
		if hasTime {
			removed = d.Events.RemoveTime(name, hhmm)
		} else {
			removed = d.Events.Delete(name)
		}
		return removed
	})

	target := name
	if hasTime {
		target += " " + hhmm
	}
	if !removed {
		r.record(ctx, req, "event.delete", target, errNotFound)
		r.reply(ctx, req, eventNotFound)
		return nil
	}
	r.record(ctx, req, "event.delete", target, nil)
	if hasTime {
		r.reply(ctx, req, fmt.Sprintf("🗑️ Usunięto godzinę %s dla %s.", hhmm, b(name)))
	} else {
		r.reply(ctx, req, fmt.Sprintf("🗑️ Usunięto event %s (wszystkie godziny).", b(name)))
	}
	return nil
}

func (r *Router) cmdEventList(ctx context.Context, req *Request) error {
	var ev state.Events
	r.store.View(func(d state.Document) {
		ev = d.Clone().Events
	})
	if len(ev) == 0 {
		r.reply(ctx, req, noEvents)
		return nil
	}
	var sb strings.Builder
	sb.WriteString("📅 Lista eventów:\n")
	for _, s := range ev {
		fmt.Fprintf(&sb, "\n%s %s — %s", reminder.EventEmoji(s.Name), b(s.Name), strings.Join(s.Times, ", "))
	}
	r.reply(ctx, req, sb.String())
	return nil
}
