package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

const (
	DefaultPollSchedule = "@every 30s"
	defaultPollTimeout  = 10 * time.Second
)

type PollerConfig struct {
	// Schedule is a cron spec or descriptor. Empty means DefaultPollSchedule.
	Schedule string
	Timeout  time.Duration
	Logger   logr.Logger
	// OnChange runs after a poll that changed the unread count.
	OnChange func(unread int)
}

// Poller refreshes the unread counter on a schedule. A poll still running
// when the next one is due is skipped.
type Poller struct {
	inbox    *Inbox
	cron     *cron.Cron
	timeout  time.Duration
	logger   logr.Logger
	onChange func(int)

	mu      sync.Mutex
	started bool
}

func NewPoller(inbox *Inbox, config PollerConfig) (*Poller, error) {
	if inbox == nil {
		return nil, fmt.Errorf("notify poller: inbox is required")
	}
	logger := config.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	logger = logger.WithName("poller")
	if config.Schedule == "" {
		config.Schedule = DefaultPollSchedule
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultPollTimeout
	}

	p := &Poller{
		inbox:    inbox,
		timeout:  config.Timeout,
		logger:   logger,
		onChange: config.OnChange,
	}
	p.cron = cron.New(
		cron.WithLogger(logger.V(1)),
		cron.WithChain(cron.SkipIfStillRunning(logger.V(1))),
	)
	if _, err := p.cron.AddFunc(config.Schedule, p.Poll); err != nil {
		return nil, fmt.Errorf("notify poller: invalid schedule %q: %w", config.Schedule, err)
	}
	return p, nil
}

// Poll refreshes the unread counter once.
func (p *Poller) Poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	before := p.inbox.UnreadCount()
	if err := p.inbox.RefreshUnread(ctx); err != nil {
		return
	}
	after := p.inbox.UnreadCount()
	p.logger.V(1).Info("polled unread notifications", "unread", after)
	if after != before && p.onChange != nil {
		p.onChange(after)
	}
}

func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.cron.Start()
	p.started = true
}

// Stop halts scheduling and returns a context done once the running poll,
// if any, has finished.
func (p *Poller) Stop() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	return p.cron.Stop()
}
