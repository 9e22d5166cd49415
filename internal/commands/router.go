// Package commands parses "!" chat commands and applies them to the state store.
package commands

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bosstimer/internal/clock"
	rtsup "bosstimer/internal/runtime/supervisor"
	"bosstimer/internal/state"
	"bosstimer/internal/storage"
	"bosstimer/internal/telemetry"
	kit "bosstimer/internal/transport"
	logx "bosstimer/pkg/logx"
	"bosstimer/pkg/tgui"
)

// ErrUsage marks a command rejected with a usage reply. State is unchanged.
var ErrUsage = errors.New("usage")

var errNotFound = errors.New("not found")

// Scope is the channel a command is accepted in.
type Scope int

const (
	ScopeBoss Scope = iota + 1
	ScopeEvent
)

type Command struct {
	Name    string
	Aliases []string
	Scope   Scope
	Usage   string
	Timeout time.Duration // optional per-command override
	Handle  HandlerFunc
}

type Request struct {
	Message *kit.Message
	Chat    kit.ChatTarget
	Channel string
	Command string
	Args    []string
	Now     time.Time
	ReqID   string
	Logger  logx.Logger
}

// Sender is the subset of the transport adapter used for replies.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

type Config struct {
	BossChannel  string
	EventChannel string
	// Workers handling updates in parallel. 1 keeps replies in message order.
	Workers int
	Timeout time.Duration
}

type Router struct {
	mu   sync.RWMutex
	cfg  Config
	cmds map[string]*Command

	sender Sender
	dir    kit.Directory
	store  *state.Store
	audit  storage.Store
	clock  clock.Clock
	log    logx.Logger

	runMu sync.Mutex
	sup   *rtsup.Supervisor
}

// New builds a router with the boss and event commands registered. audit may be nil.
func New(cfg Config, sender Sender, dir kit.Directory, store *state.Store, audit storage.Store, clk clock.Clock, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	r := &Router{
		cfg:    cfg,
		cmds:   map[string]*Command{},
		sender: sender,
		dir:    dir,
		store:  store,
		audit:  audit,
		clock:  clk,
		log:    log,
	}
	r.register(r.bossCommands()...)
	r.register(r.eventCommands()...)
	return r
}

func (r *Router) register(cmds ...Command) {
	for i := range cmds {
		c := cmds[i]
		r.cmds[c.Name] = &c
		for _, a := range c.Aliases {
			r.cmds[a] = &c
		}
	}
}

// SetChannels swaps the accepted channel names (hot reload).
func (r *Router) SetChannels(boss, event string) {
	r.mu.Lock()
	r.cfg.BossChannel = boss
	r.cfg.EventChannel = event
	r.mu.Unlock()
}

func (r *Router) channels() (boss, event string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.BossChannel, r.cfg.EventChannel
}

// Supervisor returns the dispatcher's supervisor (nil if not running).
func (r *Router) Supervisor() *rtsup.Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.sup
}

// inChannel reports whether m was posted in the channel named want. The
// chat id is checked first so several names may share one chat; names and
// chat titles are compared after that.
func (r *Router) inChannel(m *kit.Message, want string) bool {
	if r.dir != nil {
		if to, ok := r.dir.Resolve(want); ok && to.ChatID == m.ChatID {
			return true
		}
		if name := r.dir.NameOf(m.ChatID); name != "" {
			return sameChannel(name, want)
		}
	}
	return sameChannel(m.ChatTitle, want)
}

func sameChannel(a, b string) bool {
	norm := func(s string) string { return strings.TrimPrefix(strings.TrimSpace(s), "#") }
	return norm(a) != "" && strings.EqualFold(norm(a), norm(b))
}

// HandleUpdate runs the command carried by up, if any. It reports whether a
// command was dispatched; unknown commands and commands posted outside their
// channel are ignored without a reply.
func (r *Router) HandleUpdate(ctx context.Context, up kit.Update) bool {
	m := up.Message
	if up.Kind != kit.UpdateMessage || m == nil || m.IsBot {
		return false
	}
	name, args, ok := parseCommand(m.Text)
	if !ok {
		return false
	}
	cmd, ok := r.cmds[name]
	if !ok {
		return false
	}

	boss, event := r.channels()
	channel := boss
	if cmd.Scope == ScopeEvent {
		channel = event
	}
	if !r.inChannel(m, channel) {
		r.log.Debug("command outside its channel ignored",
			logx.String("cmd", name), logx.Int64("chat_id", m.ChatID), logx.String("want", channel))
		return false
	}

	rid := uuid.NewString()
	req := &Request{
		Message: m,
		Chat:    kit.ChatTarget{ChatID: m.ChatID},
		Channel: channel,
		Command: cmd.Name,
		Args:    args,
		Now:     r.clock.Now(),
		ReqID:   rid,
		Logger:  r.log.With(logx.String("rid", rid)),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	h := Chain(cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	)
	err := h(ctx, req)
	switch {
	case err == nil:
		telemetry.IncCommand(cmd.Name, "ok")
	case errors.Is(err, ErrUsage):
		telemetry.IncCommand(cmd.Name, "usage")
	default:
		telemetry.IncCommand(cmd.Name, "error")
	}
	return true
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log),
		rtsup.WithCancelOnError(false),
	)
	r.runMu.Lock()
	r.sup = sup
	r.runMu.Unlock()

	r.log.Info("command dispatcher started", logx.Int("workers", r.cfg.Workers))

	for i := 0; i < r.cfg.Workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case up, ok := <-updates:
					if !ok {
						return nil
					}
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in command worker", logx.Int("worker", idx), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
							}
						}()
						r.HandleUpdate(c, up)
					}()
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
			rtsup.WithStopOnCleanExit(true),
		)
	}

	// Returns when every worker saw a closed channel, or on cancel.
	if err := sup.Wait(ctx); err != nil && ctx.Err() != nil {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
	}

	r.runMu.Lock()
	r.sup = nil
	r.runMu.Unlock()
	r.log.Info("command dispatcher stopped")
	return nil
}

func (r *Router) reply(ctx context.Context, req *Request, text string) {
	if r.sender == nil {
		return
	}
	if _, err := r.sender.SendText(ctx, req.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}); err != nil {
		req.Logger.Warn("reply failed", logx.Int64("chat_id", req.Chat.ChatID), logx.Err(err))
	}
}

// usage replies with text and returns ErrUsage.
func (r *Router) usage(ctx context.Context, req *Request, text string) error {
	r.reply(ctx, req, text)
	return ErrUsage
}

// record appends a state-changing command to the audit log.
func (r *Router) record(ctx context.Context, req *Request, action, target string, err error) {
	if r.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:        req.Now,
		ReqID:     req.ReqID,
		ActorID:   req.Message.FromID,
		ActorName: req.Message.Author(),
		ChatID:    req.Message.ChatID,
		Channel:   req.Channel,
		Action:    action,
		Target:    tgui.TruncRunes(target, 200),
		OK:        err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := r.audit.AppendAudit(ctx, e); aerr != nil {
		req.Logger.Warn("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}

func b(s string) string { return tgui.B(s).String() }
