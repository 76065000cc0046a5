package tunnel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/net"
	log "github.com/sirupsen/logrus"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// InterfaceCounters looks up byte counters and the first address of a
// network interface. found is false when the interface does not exist.
type InterfaceCounters func(ctx context.Context, iface string) (in, out uint64, addr string, found bool, err error)

type WgQuickOptions struct {
	Interface   string
	Dir         string // where <Interface>.conf is written
	WgQuickPath string
	WgPath      string
	Run         Runner
	Counters    InterfaceCounters
}

// WgQuick drives a WireGuard tunnel through wg-quick(8). Only WireGuard
// configs are accepted.
type WgQuick struct {
	opts WgQuickOptions
	hub  *Hub

	mu sync.Mutex
	up bool
	// partial means an interrupted up may have left the interface behind;
	// the conf file is kept so down can remove it.
	partial bool
}

func NewWgQuick(opts WgQuickOptions) *WgQuick {
	if opts.Interface == "" {
		opts.Interface = "shield0"
	}
	if opts.WgQuickPath == "" {
		opts.WgQuickPath = "wg-quick"
	}
	if opts.WgPath == "" {
		opts.WgPath = "wg"
	}
	if opts.Run == nil {
		opts.Run = execRunner
	}
	if opts.Counters == nil {
		opts.Counters = gopsutilCounters
	}
	return &WgQuick{opts: opts, hub: NewHub(0)}
}

func (w *WgQuick) Subscribe() *Subscription {
	return w.hub.Subscribe()
}

func (w *WgQuick) confPath() string {
	return filepath.Join(w.opts.Dir, w.opts.Interface+".conf")
}

func (w *WgQuick) logger() *log.Entry {
	return log.WithFields(log.Fields{"iface": w.opts.Interface, "driver": "wgquick"})
}

func (w *WgQuick) Connect(ctx context.Context, config, displayName string) error {
	if _, err := ParseWireGuard(config); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	l := w.logger().WithField("server", displayName)

	if err := os.MkdirAll(w.opts.Dir, 0o700); err != nil {
		return fmt.Errorf("create tunnel dir: %w", err)
	}
	if err := os.WriteFile(w.confPath(), []byte(config), 0o600); err != nil {
		return fmt.Errorf("write tunnel config: %w", err)
	}

	w.hub.Publish(StateEvent("CONNECTING", ""))
	l.Info("bringing tunnel up")

	out, err := w.opts.Run(ctx, w.opts.WgQuickPath, "up", w.confPath())
	if err != nil {
		if ctx.Err() != nil {
			l.WithError(err).Warn("wg-quick up interrupted")
			w.partial = true
		} else {
			l.WithError(err).Errorf("wg-quick up failed: %s", strings.TrimSpace(string(out)))
			_ = os.Remove(w.confPath())
		}
		return fmt.Errorf("wg-quick up: %w", err)
	}

	w.up, w.partial = true, false
	w.hub.Publish(StateEvent("CONNECTED", ""))
	l.Info("tunnel up")
	return nil
}

func (w *WgQuick) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	l := w.logger()

	w.hub.Publish(StateEvent("DISCONNECTING", ""))

	if w.up || w.partial {
		l.Info("bringing tunnel down")
		out, err := w.opts.Run(ctx, w.opts.WgQuickPath, "down", w.confPath())
		switch {
		case err == nil:
		case !w.up && interfaceMissing(out):
			l.Debug("interrupted up never created the interface")
		default:
			l.WithError(err).Errorf("wg-quick down failed: %s", strings.TrimSpace(string(out)))
			return fmt.Errorf("wg-quick down: %w", err)
		}
	}

	w.up, w.partial = false, false
	_ = os.Remove(w.confPath())
	w.hub.Publish(StateEvent("DISCONNECTED", ""))
	l.Info("tunnel down")
	return nil
}

// interfaceMissing reports whether wg-quick down failed because the
// interface was never created.
func interfaceMissing(out []byte) bool {
	msg := strings.ToLower(string(out))
	return strings.Contains(msg, "is not a wireguard interface") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "cannot find device")
}

func (w *WgQuick) Stats(ctx context.Context) (Counters, error) {
	w.mu.Lock()
	up := w.up
	w.mu.Unlock()
	if !up {
		return Counters{}, ErrNotConnected
	}

	in, out, addr, found, err := w.opts.Counters(ctx, w.opts.Interface)
	if err != nil {
		return Counters{}, err
	}
	if !found {
		return Counters{}, ErrNotConnected
	}

	c := Counters{BytesIn: in, BytesOut: out, IPAddress: addr}

	hs, err := w.opts.Run(ctx, w.opts.WgPath, "show", w.opts.Interface, "latest-handshakes")
	if err != nil {
		w.logger().WithError(err).Debug("latest-handshakes unavailable")
		return c, nil
	}
	c.LastHandshake = parseLatestHandshakes(hs)
	return c, nil
}

// parseLatestHandshakes reads `wg show <iface> latest-handshakes` output
// (one "<peer key>\t<unix seconds>" line per peer) and returns the most
// recent handshake. A zero timestamp means the peer never completed one.
func parseLatestHandshakes(out []byte) time.Time {
	var latest int64
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		ts, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		if ts > latest {
			latest = ts
		}
	}
	if latest == 0 {
		return time.Time{}
	}
	return time.Unix(latest, 0)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func gopsutilCounters(ctx context.Context, iface string) (uint64, uint64, string, bool, error) {
	stats, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return 0, 0, "", false, err
	}

	var (
		in, out uint64
		found   bool
	)
	for _, s := range stats {
		if s.Name == iface {
			in, out, found = s.BytesRecv, s.BytesSent, true
			break
		}
	}
	if !found {
		return 0, 0, "", false, nil
	}

	var addr string
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err == nil {
		for _, i := range ifaces {
			if i.Name != iface || len(i.Addrs) == 0 {
				continue
			}
			addr, _, _ = strings.Cut(i.Addrs[0].Addr, "/")
			break
		}
	}
	return in, out, addr, true, nil
}
