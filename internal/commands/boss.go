package commands

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"bosstimer/internal/clock"
	"bosstimer/internal/state"
	logx "bosstimer/pkg/logx"
	"bosstimer/pkg/tgui"
)

const (
	bossUsage    = "❌ Użycie: <code>!boss &lt;nazwa&gt; &lt;mapa&gt; +1h30m</code>"
	badDuration  = "❌ Podaj czas w formacie <code>+Xm</code>, <code>+Xh</code> lub <code>+XhYm</code> (np. <code>+1h30m</code>, <code>+45m</code>)."
	delBossUsage = "❌ Użycie: <code>!delboss &lt;nazwa&gt;</code>"
	noActiveBoss = "⏳ Brak aktywnych bossów."
)

func (r *Router) bossCommands() []Command {
	return []Command{
		{Name: "boss", Scope: ScopeBoss, Usage: "!boss <nazwa> <mapa> +1h30m", Handle: r.cmdBoss},
		{Name: "delboss", Scope: ScopeBoss, Usage: "!delboss <nazwa>", Handle: r.cmdDelBoss},
		{Name: "timer", Scope: ScopeBoss, Usage: "!timer", Handle: r.cmdTimer},
		{Name: "timerclean", Scope: ScopeBoss, Usage: "!timerclean", Handle: r.cmdTimerClean},
	}
}

// cmdBoss: the last argument is the duration, the one before it the map and
// everything before that the name.
func (r *Router) cmdBoss(ctx context.Context, req *Request) error {
	if len(req.Args) < 3 {
		return r.usage(ctx, req, bossUsage)
	}
	n := len(req.Args)
	dur, ok := ParseRespawnDuration(req.Args[n-1])
	if !ok {
		return r.usage(ctx, req, badDuration)
	}
	name := strings.TrimSpace(strings.Join(req.Args[:n-2], " "))
	mapName := strings.TrimSpace(req.Args[n-2])
	if name == "" || mapName == "" {
		return r.usage(ctx, req, bossUsage)
	}

	boss := state.BossTimer{
		Name:      name,
		Map:       mapName,
		RespawnAt: req.Now.Add(dur).UTC(),
		AddedBy:   req.Message.Author(),
	}
	r.store.Mutate(func(d *state.Document) bool {
		d.Bosses = append(d.Bosses, boss)
		return true
	})
	r.record(ctx, req, "boss.add", fmt.Sprintf("%s @ %s +%s", name, mapName, dur), nil)
	req.Logger.Info("boss added", logx.String("name", name), logx.String("map", mapName), logx.Time("respawn", boss.RespawnAt))

	loc := r.clock.Location()
	r.reply(ctx, req, fmt.Sprintf("💀 %s\n📍 Mapa: %s\n⏰ Respawn: %s\n👤 Dodany przez: %s",
		b(name), tgui.Esc(mapName), clock.FormatHM(boss.RespawnAt, loc), tgui.Esc(boss.AddedBy)))
	return nil
}

func (r *Router) cmdDelBoss(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(strings.Join(req.Args, " "))
	if name == "" {
		return r.usage(ctx, req, delBossUsage)
	}
	removed := 0
	r.store.Mutate(func(d *state.Document) bool {
		removed = d.RemoveBosses(name)
		return removed > 0
	})
	r.record(ctx, req, "boss.delete", name, nil)
	r.reply(ctx, req, fmt.Sprintf("🗑️ Usunięto %d bossów o nazwie %s.", removed, b(name)))
	return nil
}

func (r *Router) cmdTimer(ctx context.Context, req *Request) error {
	var active []state.BossTimer
	r.store.View(func(d state.Document) {
		active = d.ActiveBosses(req.Now)
	})
	if len(active) == 0 {
		r.reply(ctx, req, noActiveBoss)
		return nil
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].RespawnAt.Before(active[j].RespawnAt) })

	loc := r.clock.Location()
	lines := make([]string, 0, len(active))
	for _, bt := range active {
		left := int(math.Ceil(bt.RespawnAt.Sub(req.Now).Minutes()))
		lines = append(lines, fmt.Sprintf("💀 %s — %s\n⏰ %s — za %dm • 👤 %s",
			b(bt.Name), tgui.Esc(bt.Map), clock.FormatHM(bt.RespawnAt, loc), left, tgui.Esc(bt.AddedBy)))
	}
	r.reply(ctx, req, "⏳ Aktywne bossy:\n\n"+strings.Join(lines, "\n\n"))
	return nil
}

func (r *Router) cmdTimerClean(ctx context.Context, req *Request) error {
	removed := 0
	r.store.Mutate(func(d *state.Document) bool {
		removed = d.RemoveTerminal(req.Now)
		return removed > 0
	})
	r.record(ctx, req, "boss.clean", fmt.Sprintf("%d", removed), nil)
	r.reply(ctx, req, fmt.Sprintf("🧹 Usunięto %d zakończonych bossów.", removed))
	return nil
}
