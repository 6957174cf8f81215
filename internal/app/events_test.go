// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/relabs-tech/frame_recorder/internal/session"
)

func TestPumpStoppedDuringEmit(t *testing.T) {
	rig := newTestRig(t)

	var handled atomic.Int32
	stop := startPump(rig.ctrl, "test", discardLogger, func(session.Event) { handled.Add(1) })

	// Stop the pump from inside the first emit, while the controller is
	// still iterating its copy of the listeners.
	var once sync.Once
	unsubscribe := rig.ctrl.Subscribe(func(session.Event) { once.Do(stop) })
	defer unsubscribe()

	for i := 0; i < 3; i++ {
		if _, err := rig.ctrl.SaveFrame(context.Background()); err != nil {
			t.Fatalf("SaveFrame: %v", err)
		}
	}
	rig.ctrl.Wait()
	once.Do(stop)

	if n := handled.Load(); n > 1 {
		t.Fatalf("pump handled %d events after stop, want at most 1", n)
	}
}

func TestPumpIgnoresEventsAfterClose(t *testing.T) {
	p := &pump{name: "late", logger: discardLogger, ch: make(chan session.Event, 1), done: make(chan struct{})}
	p.close()
	p.close()
	p.offer(session.Event{Kind: session.EventStarted})
	if len(p.ch) != 0 {
		t.Fatalf("closed pump queued %d events", len(p.ch))
	}
}
