// Package controller owns the connection lifecycle. A single loop goroutine
// holds all state; commands, backend events, timer ticks and the results of
// off-loop work reach it as messages, and every change is published as a
// models.Snapshot.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shieldvpn/internal/models"
	"shieldvpn/internal/telemetry"
	"shieldvpn/internal/tunnel"

	"go.uber.org/zap"
)

// Store is the persistence the controller reads once at start and writes
// after every user change. *storage.SettingsStore implements it.
type Store interface {
	LoadSettings(ctx context.Context) models.VpnSettings
	SaveSettings(ctx context.Context, settings models.VpnSettings) error
	LoadSelectedServerID(ctx context.Context) (string, bool)
	SaveSelectedServerID(ctx context.Context, id string) error
	LoadFavorites(ctx context.Context) []string
	SaveFavorites(ctx context.Context, ids []string) error
	LoadOnboardingComplete(ctx context.Context) bool
	SaveOnboardingComplete(ctx context.Context, done bool) error
}

type ServerLookup interface {
	Get(id string) (models.Server, bool)
}

type Deps struct {
	Backend tunnel.Backend
	Store   Store
	Servers ServerLookup
	Clock   Clock
	Logger  *zap.SugaredLogger
}

type Options struct {
	StatsInterval time.Duration
	TickInterval  time.Duration
	SettleDelay   time.Duration
}

func DefaultOptions() Options {
	return Options{
		StatsInterval: telemetry.DefaultInterval,
		TickInterval:  time.Second,
		SettleDelay:   500 * time.Millisecond,
	}
}

type opKind int

const (
	opNone opKind = iota
	opConnect
	opDisconnect
	opReconnectTeardown
	opReconnectSettle
)

// operation is the backend work currently in flight. Completions carrying
// another generation are stale.
type operation struct {
	kind   opKind
	gen    uint64
	server models.Server
	cancel context.CancelFunc
	timer  Timer
}

type (
	loadedMsg struct {
		settings    models.VpnSettings
		selectedID  string
		hasSelected bool
		favorites   []string
		onboarded   bool
	}
	callDoneMsg struct {
		gen uint64
		err error
	}
	settleMsg struct {
		gen uint64
	}
	pollMsg struct {
		session  uint64
		counters tunnel.Counters
		err      error
	}
)

type Controller struct {
	backend tunnel.Backend
	poller  tunnel.StatsPoller
	store   Store
	servers ServerLookup
	clock   Clock
	log     *zap.SugaredLogger
	opts    Options

	ctx       context.Context
	cancel    context.CancelFunc
	events    *tunnel.Subscription
	persist   *persister
	cmds      chan func()
	internal  chan any
	loaded    chan struct{}
	closing   chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	snapMu sync.RWMutex
	snap   models.Snapshot

	subMu      sync.Mutex
	subs       map[*Subscription]struct{}
	subsClosed bool

	// owned by the loop
	status       models.ConnectionStatus
	errMsg       string
	selected     *models.Server
	pending      *models.Server
	switchOnIdle bool
	favorites    map[string]struct{}
	settings     models.VpnSettings
	onboarded    bool
	loading      bool
	remembered   *models.Server
	op           operation
	gen          uint64
	session      uint64
	sampler      *telemetry.Sampler
	tick         Ticker
	poll         Ticker

	// a reconnect asked for while the backend was going down; it starts
	// once disconnected is reached
	reconnectOnIdle bool
}

func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Backend == nil || deps.Store == nil || deps.Servers == nil {
		return nil, errors.New("controller: backend, store and servers are required")
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}

	def := DefaultOptions()
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = def.StatsInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = def.SettleDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:   deps.Backend,
		store:     deps.Store,
		servers:   deps.Servers,
		clock:     deps.Clock,
		log:       deps.Logger.Named("controller"),
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		cmds:      make(chan func()),
		internal:  make(chan any),
		loaded:    make(chan struct{}),
		closing:   make(chan struct{}),
		exited:    make(chan struct{}),
		subs:      make(map[*Subscription]struct{}),
		status:    models.StatusDisconnected,
		favorites: make(map[string]struct{}),
		settings:  models.DefaultSettings(),
		loading:   true,
		sampler:   telemetry.NewSampler(opts.StatsInterval),
	}
	c.poller, _ = deps.Backend.(tunnel.StatsPoller)
	c.events = deps.Backend.Subscribe()
	c.persist = newPersister(c.log)
	c.publish()

	go c.run()
	c.persist.submit("load", func(ctx context.Context) error {
		c.post(c.load(ctx))
		return nil
	})

	return c, nil
}

// Close stops the loop, cancels timers and in-flight backend calls, waits
// for queued writes, and closes the backend and snapshot subscriptions.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		<-c.exited
		c.persist.close()
		c.closeSubscriptions()
	})
	return nil
}

// WaitLoaded blocks until the persisted state has been read.
func (c *Controller) WaitLoaded(ctx context.Context) error {
	select {
	case <-c.loaded:
		return nil
	case <-c.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) Connect(ctx context.Context) error {
	return c.callErr(ctx, c.connect)
}

func (c *Controller) Disconnect(ctx context.Context) error {
	return c.callErr(ctx, c.disconnect)
}

func (c *Controller) Reconnect(ctx context.Context) error {
	return c.callErr(ctx, c.reconnect)
}

// ClearError leaves the error state. It never calls the backend.
func (c *Controller) ClearError(ctx context.Context) error {
	return c.callErr(ctx, func() error {
		if c.status == models.StatusError {
			c.enterDisconnected()
		}
		return nil
	})
}

// SelectServer selects a server while the tunnel is idle and returns once
// the choice is stored. While a tunnel is up the server is only recorded as
// pending and ErrSwitchRequiresDisconnect is returned.
func (c *Controller) SelectServer(ctx context.Context, id string) error {
	return c.callWait(ctx, func() (<-chan error, error) {
		server, ok := c.servers.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownServer, id)
		}

		switch {
		case c.selected != nil && c.selected.ID == id && !c.status.IsResting():
			c.pending = nil
			return nil, nil
		case c.status.IsActive():
			c.pending = &server
			c.log.Infow("server switch pending", "server", id, "status", c.status)
			return nil, ErrSwitchRequiresDisconnect
		case c.status == models.StatusDisconnecting:
			return nil, ErrBusy
		}
		return c.applySelection(server), nil
	})
}

// ConfirmServerSwitch disconnects and applies the pending server once the
// tunnel is down.
func (c *Controller) ConfirmServerSwitch(ctx context.Context) error {
	return c.callWait(ctx, func() (<-chan error, error) {
		if c.pending == nil {
			return nil, ErrNoPendingSwitch
		}
		if c.status.IsResting() {
			return c.applySelection(*c.pending), nil
		}

		c.switchOnIdle = true
		if c.status != models.StatusDisconnecting {
			if err := c.disconnect(); err != nil {
				c.switchOnIdle = false
				return nil, err
			}
		}
		return nil, nil
	})
}

func (c *Controller) CancelServerSwitch(ctx context.Context) error {
	return c.callErr(ctx, func() error {
		if c.pending == nil {
			return ErrNoPendingSwitch
		}
		c.pending = nil
		c.switchOnIdle = false
		return nil
	})
}

// ToggleFavorite flips membership of id and stores the new set. It reports
// whether id is a favorite afterwards.
func (c *Controller) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var member bool
	err := c.callWait(ctx, func() (<-chan error, error) {
		if _, ok := c.servers.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownServer, id)
		}

		if _, ok := c.favorites[id]; ok {
			delete(c.favorites, id)
		} else {
			c.favorites[id] = struct{}{}
			member = true
		}

		ids := c.favoriteIDs()
		return c.persist.submit("favorites", func(ctx context.Context) error {
			return c.store.SaveFavorites(ctx, ids)
		}), nil
	})
	return member, err
}

// UpdateSettings merges patch into the current settings and stores the
// full record. The merged record stays in effect even if the write fails.
func (c *Controller) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.VpnSettings, error) {
	var next models.VpnSettings
	err := c.callWait(ctx, func() (<-chan error, error) {
		merged, err := c.settings.Apply(patch)
		if err != nil {
			next = c.settings
			return nil, err
		}
		c.settings = merged
		next = merged
		return c.persist.submit("settings", func(ctx context.Context) error {
			return c.store.SaveSettings(ctx, merged)
		}), nil
	})
	return next, err
}

func (c *Controller) CompleteOnboarding(ctx context.Context) error {
	return c.callWait(ctx, func() (<-chan error, error) {
		c.onboarded = true
		return c.persist.submit("onboarding", func(ctx context.Context) error {
			return c.store.SaveOnboardingComplete(ctx, true)
		}), nil
	})
}

// Snapshot returns a copy of the latest published state.
func (c *Controller) Snapshot() models.Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return cloneSnapshot(c.snap)
}

// Subscribe returns a subscription primed with the current snapshot.
func (c *Controller) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan models.Snapshot, 1), c: c}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subsClosed {
		s.close()
		return s
	}
	c.subs[s] = struct{}{}
	s.offer(c.Snapshot())
	return s
}

func (c *Controller) unsubscribe(s *Subscription) {
	c.subMu.Lock()
	delete(c.subs, s)
	c.subMu.Unlock()
	s.close()
}

func (c *Controller) closeSubscriptions() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subsClosed = true
	for s := range c.subs {
		delete(c.subs, s)
		s.close()
	}
}

// exec runs fn on the loop and publishes the result before returning.
func (c *Controller) exec(ctx context.Context, fn func()) error {
	if err := c.WaitLoaded(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	cmd := func() {
		fn()
		c.publish()
		close(done)
	}

	select {
	case c.cmds <- cmd:
	case <-c.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

func (c *Controller) callErr(ctx context.Context, fn func() error) error {
	var err error
	if e := c.exec(ctx, func() { err = fn() }); e != nil {
		return e
	}
	return err
}

// callWait runs fn on the loop, then waits outside of it for the write fn
// queued, if any.
func (c *Controller) callWait(ctx context.Context, fn func() (<-chan error, error)) error {
	var (
		wait <-chan error
		err  error
	)
	if e := c.exec(ctx, func() { wait, err = fn() }); e != nil {
		return e
	}
	if err != nil || wait == nil {
		return err
	}

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers msg to the loop unless the controller is closing.
func (c *Controller) post(msg any) {
	select {
	case c.internal <- msg:
	case <-c.closing:
	}
}

func (c *Controller) load(ctx context.Context) loadedMsg {
	id, ok := c.store.LoadSelectedServerID(ctx)
	return loadedMsg{
		settings:    c.store.LoadSettings(ctx),
		selectedID:  id,
		hasSelected: ok,
		favorites:   c.store.LoadFavorites(ctx),
		onboarded:   c.store.LoadOnboardingComplete(ctx),
	}
}

func (c *Controller) favoriteIDs() []string {
	ids := make([]string, 0, len(c.favorites))
	for id := range c.favorites {
		ids = append(ids, id)
	}
	return sortedIDs(ids)
}

func (c *Controller) publish() {
	snap := models.Snapshot{
		Status:               c.status,
		Stats:                c.sampler.Stats(),
		ErrorMessage:         c.errMsg,
		FavoriteServerIDs:    c.favoriteIDs(),
		Settings:             c.settings,
		IsLoading:            c.loading,
		IsOnboardingComplete: c.onboarded,
	}
	if c.selected != nil {
		s := *c.selected
		snap.SelectedServer = &s
	}
	if c.pending != nil {
		s := *c.pending
		snap.PendingServer = &s
	}

	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()

	c.subMu.Lock()
	for s := range c.subs {
		s.offer(cloneSnapshot(snap))
	}
	c.subMu.Unlock()
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	out := s
	if s.SelectedServer != nil {
		v := *s.SelectedServer
		out.SelectedServer = &v
	}
	if s.PendingServer != nil {
		v := *s.PendingServer
		out.PendingServer = &v
	}
	out.FavoriteServerIDs = append([]string(nil), s.FavoriteServerIDs...)
	return out
}
