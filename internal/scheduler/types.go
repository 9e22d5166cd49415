package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bosstimer/internal/eventbus"
	logx "bosstimer/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Timezone       string // IANA TZ, e.g. "Europe/Warsaw"
	DefaultTimeout time.Duration
	HistorySize    int
}

// Job is the unit of scheduled work. A returned error is logged and counted;
// the job runs again at its next activation.
type Job func(ctx context.Context) error

type HistoryItem struct {
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type scheduleDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID
}

type ScheduleInfo struct {
	Name    string        `json:"name"`
	Spec    string        `json:"spec"`
	Timeout time.Duration `json:"timeout"`
	Next    time.Time     `json:"next"`
	Prev    time.Time     `json:"prev"`
}

type Snapshot struct {
	Running   bool           `json:"running"`
	Timezone  string         `json:"timezone"`
	Schedules []ScheduleInfo `json:"schedules"`
	History   []HistoryItem  `json:"history"`
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	runCtx    context.Context
	runCancel context.CancelFunc

	hmu     sync.Mutex
	history []HistoryItem
}
