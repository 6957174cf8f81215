// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log/slog"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/frame_recorder/internal/session"
	"github.com/relabs-tech/frame_recorder/internal/store"
)

// eventQueueSize bounds the events buffered for one slow consumer.
const eventQueueSize = 256

// pump moves controller events onto a goroutine of their own so a slow
// consumer (disk, network) never holds up the capture loop or a flush.
// Events that do not fit in the queue are dropped and logged.
//
// The controller may still call a pump's callback after unsubscribe returns,
// so sends and close are serialized by mu and gated by stopped.
type pump struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	ch      chan session.Event
	done    chan struct{}
}

func (p *pump) offer(e session.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.ch <- e:
	default:
		p.logger.Warn("event queue full, dropping event", "consumer", p.name, "kind", e.Kind, "session", e.SessionID)
	}
}

func (p *pump) close() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.ch)
	}
	p.mu.Unlock()
}

func startPump(ctrl *session.Controller, name string, logger *slog.Logger, handle func(session.Event)) (stop func()) {
	p := &pump{name: name, logger: logger, ch: make(chan session.Event, eventQueueSize), done: make(chan struct{})}
	unsubscribe := ctrl.Subscribe(p.offer)
	go func() {
		defer close(p.done)
		for e := range p.ch {
			handle(e)
		}
	}()
	return func() {
		unsubscribe()
		p.close()
		<-p.done
	}
}

// catalogUpdater mirrors flush progress into the recording catalog.
type catalogUpdater struct {
	cat    *store.Catalog
	logger *slog.Logger
}

func (c *catalogUpdater) handle(e session.Event) {
	entry := store.Entry{
		SessionID: e.SessionID,
		Kind:      e.RecordKind,
		Dir:       e.Dir,
		Records:   e.Records,
		Missing:   e.Missing,
		StartedAt: e.StartedAt,
		StoppedAt: e.StoppedAt,
		UpdatedAt: e.At,
		Error:     e.Error,
	}
	switch e.Kind {
	case session.EventFlushStarted:
		entry.Status = store.StatusFlushing
	case session.EventFlushDone, session.EventFrameSaved:
		entry.Status = store.StatusSaved
	case session.EventFlushFailed:
		entry.Status = store.StatusFailed
	default:
		return
	}
	if err := c.cat.Put(entry); err != nil {
		c.logger.Error("catalog update failed", "session", e.SessionID, "err", err)
	}
}

// mqttEmitter publishes every controller event as JSON.
type mqttEmitter struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

func (m *mqttEmitter) handle(e session.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		m.logger.Error("event marshal error", "err", err)
		return
	}
	if token := m.client.Publish(m.topic, 0, false, payload); token.Wait() && token.Error() != nil {
		m.logger.Warn("MQTT publish error", "topic", m.topic, "err", token.Error())
	}
}
