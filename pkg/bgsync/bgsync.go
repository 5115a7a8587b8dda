// Package bgsync runs queue reconciliation on behalf of the host: when
// connectivity returns after a sync was registered, and on a periodic wake.
package bgsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/wurt83ow/locsync-client/pkg/appcontext"
	"github.com/wurt83ow/locsync-client/pkg/models"
)

// TagLocationSync is the only tag this client answers to.
const TagLocationSync = "location-sync"

var ErrUnknownTag = errors.New("unknown sync tag")

type Drainer interface {
	Drain(ctx context.Context) (models.DrainReport, error)
}

type Connectivity interface {
	Online() bool
}

type Trigger struct {
	drainer Drainer
	net     Connectivity
	log     logrus.FieldLogger

	mu      sync.Mutex
	pending map[string]bool
	online  bool

	cron *cron.Cron
}

func New(drainer Drainer, net Connectivity, log logrus.FieldLogger) *Trigger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	online := true
	if net != nil {
		online = net.Online()
	}
	return &Trigger{
		drainer: drainer,
		net:     net,
		log:     log,
		pending: make(map[string]bool),
		online:  online,
	}
}

func known(tag string) bool {
	return tag == TagLocationSync
}

// Register records interest in a sync once connectivity returns.
func (t *Trigger) Register(tag string) error {
	if !known(tag) {
		return fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pending[tag] {
		t.log.WithField("tag", tag).Debug("sync registered")
	}
	t.pending[tag] = true
	return nil
}

func (t *Trigger) reregister(tag string, log logrus.FieldLogger) {
	if err := t.Register(tag); err != nil {
		log.WithError(err).Error("failed to keep sync registered")
	}
}

func (t *Trigger) Pending(tag string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[tag]
}

// Dispatch is the named entry point the host invokes.
func (t *Trigger) Dispatch(ctx context.Context, tag string) error {
	if !known(tag) {
		return fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}

	ctx = appcontext.WithTriggerTag(appcontext.WithRunID(ctx), tag)
	runID, _ := appcontext.GetRunID(ctx)
	log := t.log.WithFields(logrus.Fields{"tag": tag, "run_id": runID})

	log.Info("sync event")
	report, err := t.drainer.Drain(ctx)
	if err != nil {
		log.WithError(err).Error("sync failed")
		return err
	}

	log.WithFields(logrus.Fields{
		"attempted": report.Attempted,
		"synced":    report.Synced,
		"failed":    report.Failed,
	}).Info("sync finished")

	if report.Failed > 0 {
		t.reregister(tag, log)
	}
	return nil
}

// ConnectivityChanged must be called by the host on every connectivity
// report. An offline to online transition fires every pending registration.
func (t *Trigger) ConnectivityChanged(ctx context.Context, online bool) {
	t.mu.Lock()
	wasOnline := t.online
	t.online = online

	var tags []string
	if online && !wasOnline {
		for tag := range t.pending {
			tags = append(tags, tag)
		}
		t.pending = make(map[string]bool)
	}
	t.mu.Unlock()

	sort.Strings(tags)
	for _, tag := range tags {
		if err := t.Dispatch(ctx, tag); err != nil {
			// keep it for the next transition
			t.reregister(tag, t.log.WithField("tag", tag))
		}
	}
}

// Start schedules the periodic wake. Wakes are skipped while offline.
func (t *Trigger) Start(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if t.net != nil && !t.net.Online() {
			t.log.Debug("periodic wake skipped: offline")
			return
		}
		_ = t.Dispatch(ctx, TagLocationSync)
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}

	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()

	c.Start()
	t.log.WithField("schedule", spec).Info("periodic sync scheduled")
	return nil
}

// Stop halts the periodic wake and waits for a running drain to finish.
func (t *Trigger) Stop() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	t.log.Info("periodic sync stopped")
}
