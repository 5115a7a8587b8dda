// Package netstate tracks whether the server is reachable.
package netstate

import (
	"context"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Probe reports whether the network is usable right now.
type Probe func(ctx context.Context) bool

type Monitor struct {
	online atomic.Bool
	probe  Probe
	log    logrus.FieldLogger

	mu          sync.Mutex
	subscribers []func(online bool)
}

func NewMonitor(probe Probe, initial bool, log logrus.FieldLogger) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Monitor{probe: probe, log: log}
	m.online.Store(initial)
	return m
}

// DialProbe returns a probe that opens a TCP connection to the host of serverURL.
func DialProbe(serverURL string, timeout time.Duration) (Probe, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	addr := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}

	dialer := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context) bool {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, nil
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Subscribe registers fn to be called on every state report, with the new state.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Set publishes a connectivity report. Subscribers are notified even when
// the state did not change; they track transitions themselves.
func (m *Monitor) Set(online bool) {
	prev := m.online.Swap(online)
	if prev != online {
		m.log.WithField("online", online).Info("connectivity changed")
	}

	m.mu.Lock()
	subs := append([]func(bool){}, m.subscribers...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Check runs the probe once and publishes its result.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe(ctx)
	m.Set(online)
	return online
}

// Run probes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if m.probe == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}
