package controller

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"shieldvpn/internal/models"
	"shieldvpn/internal/tunnel"
)

func (c *Controller) run() {
	defer close(c.exited)

	for {
		select {
		case <-c.closing:
			c.shutdown()
			return
		case fn := <-c.cmds:
			fn()
			continue
		case ev := <-c.events.Events():
			c.handleEvent(ev)
		case msg := <-c.internal:
			c.handleInternal(msg)
		case <-tickerC(c.tick):
			c.sampler.Tick(c.clock.Now())
		case <-tickerC(c.poll):
			c.startPoll()
		}
		c.publish()
	}
}

func tickerC(t Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}

func (c *Controller) shutdown() {
	c.cancelOp()
	c.stopTickers()
	c.cancel()
	c.events.Close()
	c.log.Debug("controller stopped")
}

func (c *Controller) handleInternal(msg any) {
	// backend events queued behind a completion apply first
	c.drainEvents()

	switch m := msg.(type) {
	case loadedMsg:
		c.applyLoaded(m)
	case callDoneMsg:
		c.callDone(m)
	case settleMsg:
		if c.op.kind == opReconnectSettle && c.op.gen == m.gen {
			c.reissue()
		}
	case pollMsg:
		if m.session != c.session || !c.sampler.Running() {
			return
		}
		if m.err != nil {
			c.log.Debugw("stats poll failed", "error", m.err)
			return
		}
		c.sampler.Sample(m.counters, c.clock.Now())
	}
}

func (c *Controller) drainEvents() {
	for {
		select {
		case ev := <-c.events.Events():
			c.handleEvent(ev)
		default:
			return
		}
	}
}

func (c *Controller) applyLoaded(m loadedMsg) {
	c.settings = m.settings
	c.onboarded = m.onboarded
	for _, id := range m.favorites {
		c.favorites[id] = struct{}{}
	}
	if m.hasSelected {
		if server, ok := c.servers.Get(m.selectedID); ok {
			c.selected = &server
		} else {
			c.log.Warnw("stored server is not in the catalog", "server", m.selectedID)
		}
	}
	c.loading = false
	close(c.loaded)

	c.log.Infow("state loaded",
		"selected", m.selectedID,
		"favorites", len(c.favorites),
		"onboarded", c.onboarded,
	)
}

func (c *Controller) handleEvent(ev tunnel.Event) {
	if ev.Kind == tunnel.EventStats {
		c.sampler.Sample(ev.Counters, c.clock.Now())
		return
	}

	reported := tunnel.MapState(ev.Token)

	// teardown half of a reconnect: the backend going down is expected
	if (c.op.kind == opReconnectTeardown || c.op.kind == opReconnectSettle) && reported != models.StatusError {
		c.log.Debugw("backend event absorbed during reconnect", "token", ev.Token)
		return
	}

	next, ok := Next(c.status, reported)
	if !ok {
		c.log.Debugw("backend event ignored", "token", ev.Token, "status", c.status)
		return
	}

	switch next {
	case models.StatusConnected:
		c.enterConnected()
	case models.StatusDisconnected:
		c.enterDisconnected()
	case models.StatusError:
		c.fail(c.reportedError(ev.Message))
	default:
		c.setStatus(next)
	}
}

func (c *Controller) reportedError(message string) error {
	detail := strings.TrimSpace(message)
	if detail == "" {
		detail = "tunnel backend reported an error"
	}

	e := &BackendCommandError{Err: errors.New(detail)}
	switch c.op.kind {
	case opConnect:
		e.Op, e.Server = OpConnect, c.op.server.DisplayName()
	case opReconnectTeardown, opReconnectSettle:
		e.Op, e.Server = OpReconnect, c.op.server.DisplayName()
	case opDisconnect:
		e.Op = OpDisconnect
	}
	return e
}

func (c *Controller) callDone(m callDoneMsg) {
	if c.op.kind == opNone || c.op.gen != m.gen {
		if m.err != nil {
			c.log.Debugw("stale backend call result dropped", "error", m.err)
		}
		return
	}

	switch c.op.kind {
	case opConnect:
		if m.err != nil {
			c.fail(&BackendCommandError{Op: OpConnect, Server: c.op.server.DisplayName(), Err: m.err})
		}
		// success is reported by the connected event
	case opDisconnect:
		if m.err != nil {
			c.fail(&BackendCommandError{Op: OpDisconnect, Err: m.err})
			return
		}
		if c.status == models.StatusDisconnecting {
			c.enterDisconnected()
		} else {
			c.cancelOp()
		}
	case opReconnectTeardown:
		if m.err != nil {
			c.fail(&BackendCommandError{Op: OpReconnect, Server: c.op.server.DisplayName(), Err: m.err})
			return
		}
		c.startSettle(c.op.server)
	}
}

func (c *Controller) connect() error {
	switch c.status {
	case models.StatusConnecting, models.StatusConnected, models.StatusReconnecting:
		return nil
	case models.StatusDisconnecting:
		return ErrBusy
	}

	server, err := c.connectTarget()
	if err != nil {
		c.fail(err)
		return err
	}

	c.errMsg = ""
	c.stopSession()
	c.sampler.ResetCounters()
	c.setStatus(models.StatusConnecting)
	c.issueConnect(server)
	return nil
}

func (c *Controller) connectTarget() (models.Server, error) {
	if c.selected == nil {
		return models.Server{}, &ConfigurationError{Err: ErrNoServerSelected}
	}
	server := *c.selected
	if strings.TrimSpace(server.Config) == "" {
		return server, &ConfigurationError{Server: server.DisplayName(), Err: ErrMissingConfig}
	}
	if err := tunnel.ValidateConfig(server.Protocol, server.Config); err != nil {
		return server, &ConfigurationError{Server: server.DisplayName(), Err: err}
	}
	return server, nil
}

func (c *Controller) disconnect() error {
	switch c.status {
	case models.StatusDisconnected:
		return ErrNotConnected
	case models.StatusDisconnecting:
		c.remembered = nil
		c.reconnectOnIdle = false
		return nil
	}

	c.remembered = nil

	switch {
	case c.status == models.StatusError:
		// nothing is up; leaving the error state is all there is to do
		c.enterDisconnected()
	case c.op.kind == opReconnectSettle:
		c.enterDisconnected()
	case c.op.kind == opReconnectTeardown:
		// the teardown already in flight completes this disconnect
		c.op.kind = opDisconnect
		c.setStatus(models.StatusDisconnecting)
	default:
		c.setStatus(models.StatusDisconnecting)
		c.issueDisconnect(opDisconnect, models.Server{})
	}
	return nil
}

func (c *Controller) reconnect() error {
	if c.remembered == nil {
		return ErrNothingToReconnect
	}
	switch {
	case c.op.kind == opReconnectTeardown || c.op.kind == opReconnectSettle:
		return nil
	case c.status == models.StatusDisconnecting:
		c.reconnectOnIdle = true
		c.log.Infow("reconnect queued until the tunnel is down")
		return nil
	}

	server := *c.remembered
	wasResting := c.status.IsResting()

	c.errMsg = ""
	c.stopSession()
	c.setStatus(models.StatusReconnecting)
	c.log.Infow("reconnecting", "server", server.ID)

	if wasResting {
		c.cancelOp()
		c.startSettle(server)
		return nil
	}
	c.issueDisconnect(opReconnectTeardown, server)
	return nil
}

func (c *Controller) startSettle(server models.Server) {
	c.cancelOp()
	gen := c.nextGen()
	c.op = operation{kind: opReconnectSettle, gen: gen, server: server}
	c.op.timer = c.clock.AfterFunc(c.opts.SettleDelay, func() {
		c.post(settleMsg{gen: gen})
	})
}

// reissue is the connect half of a reconnect and starts a new session.
func (c *Controller) reissue() {
	server := c.op.server
	c.sampler.ResetCounters()
	c.issueConnect(server)
}

func (c *Controller) issueConnect(server models.Server) {
	c.cancelOp()
	ctx, cancel := context.WithCancel(c.ctx)
	gen := c.nextGen()
	c.op = operation{kind: opConnect, gen: gen, server: server, cancel: cancel}

	c.log.Infow("connecting", "server", server.ID, "protocol", server.Protocol)
	go func() {
		err := c.backend.Connect(ctx, server.Config, server.DisplayName())
		c.post(callDoneMsg{gen: gen, err: err})
	}()
}

func (c *Controller) issueDisconnect(kind opKind, server models.Server) {
	c.cancelOp()
	ctx, cancel := context.WithCancel(c.ctx)
	gen := c.nextGen()
	c.op = operation{kind: kind, gen: gen, server: server, cancel: cancel}

	c.log.Infow("disconnecting")
	go func() {
		err := c.backend.Disconnect(ctx)
		c.post(callDoneMsg{gen: gen, err: err})
	}()
}

func (c *Controller) nextGen() uint64 {
	c.gen++
	return c.gen
}

func (c *Controller) cancelOp() {
	if c.op.cancel != nil {
		c.op.cancel()
	}
	if c.op.timer != nil {
		c.op.timer.Stop()
	}
	c.op = operation{}
}

func (c *Controller) enterConnected() {
	if c.op.kind == opConnect {
		server := c.op.server
		c.remembered = &server
	}
	c.cancelOp()
	if !c.sampler.Running() {
		c.startSession()
	}
	c.errMsg = ""
	c.setStatus(models.StatusConnected)
}

func (c *Controller) enterDisconnected() {
	c.cancelOp()
	c.stopSession()
	c.errMsg = ""
	c.setStatus(models.StatusDisconnected)

	if c.switchOnIdle && c.pending != nil {
		c.applySelection(*c.pending)
	}
	c.switchOnIdle = false

	if c.reconnectOnIdle {
		c.reconnectOnIdle = false
		if c.remembered != nil {
			_ = c.reconnect()
		}
	}
}

func (c *Controller) fail(err error) {
	c.cancelOp()
	c.stopSession()
	c.switchOnIdle = false
	c.reconnectOnIdle = false
	c.errMsg = err.Error()
	c.setStatus(models.StatusError)
	c.log.Warnw("connection failed", "error", err)
}

func (c *Controller) setStatus(s models.ConnectionStatus) {
	if c.status == s {
		return
	}
	c.log.Infow("status changed", "from", c.status, "to", s)
	c.status = s
}

// applySelection makes server the selection and queues its write.
func (c *Controller) applySelection(server models.Server) <-chan error {
	c.selected = &server
	c.pending = nil
	c.switchOnIdle = false

	id := server.ID
	return c.persist.submit("selected server", func(ctx context.Context) error {
		return c.store.SaveSelectedServerID(ctx, id)
	})
}

func (c *Controller) startSession() {
	c.session++
	c.sampler.Start(c.clock.Now())
	c.tick = c.clock.NewTicker(c.opts.TickInterval)
	if c.poller != nil {
		c.poll = c.clock.NewTicker(c.opts.StatsInterval)
	}
}

func (c *Controller) stopSession() {
	if c.sampler.Running() {
		c.session++
	}
	c.stopTickers()
	c.sampler.Stop()
}

func (c *Controller) stopTickers() {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
}

func (c *Controller) startPoll() {
	session := c.session
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.StatsInterval)
	go func() {
		defer cancel()
		counters, err := c.poller.Stats(ctx)
		c.post(pollMsg{session: session, counters: counters, err: err})
	}()
}

func sortedIDs(ids []string) []string {
	slices.Sort(ids)
	return ids
}
