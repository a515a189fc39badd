// Copyright 2026 The go-sphero Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sphero

import (
	"sync/atomic"

	"github.com/orbforge/go-sphero/internal/syncutil"
)

// Async message ID codes (Sphero API 1.20, page 9)
const (
	AsyncPowerNotification  = 0x01
	AsyncLevel1Diagnostic   = 0x02
	AsyncSensorData         = 0x03
	AsyncConfigBlock        = 0x04
	AsyncPreSleepWarning    = 0x05
	AsyncMacroMarkers       = 0x06
	AsyncCollisionDetected  = 0x07
	AsyncOrbBasicPrint      = 0x08
	AsyncOrbBasicErrorASCII = 0x09
	AsyncSelfLevelResult    = 0x0B
	AsyncGyroAxisLimit      = 0x0C
)

// Filter selects which frames a listener receives. The zero value matches
// every frame the router sees, including response frames whose sequence
// matched no pending request.
type Filter struct {
	// IDCodes restricts delivery to async frames bearing one of these ID
	// codes. Empty means match all.
	IDCodes []byte
}

func (f Filter) matches(fr *Frame) bool {
	if len(f.IDCodes) == 0 {
		return true
	}
	if !fr.IsAsync() {
		return false
	}
	for _, id := range f.IDCodes {
		if fr.IDCode == id {
			return true
		}
	}
	return false
}

// Listener receives async notifications matching its filter on a bounded
// channel. Delivery is fire-and-forget: a listener that stops draining its
// channel loses its oldest notifications, it never blocks the inbound
// loop.
type Listener struct {
	router *router
	ch     chan *Frame
	filter Filter
	drops  atomic.Uint64
	id     uint64
}

// Frames returns the delivery channel. Closed when the listener or the
// owning connection is closed.
func (l *Listener) Frames() <-chan *Frame {
	return l.ch
}

// Dropped returns how many notifications were discarded because the
// listener's buffer was full. Observable but non-fatal.
func (l *Listener) Dropped() uint64 {
	return l.drops.Load()
}

// Close unregisters the listener and closes its channel.
func (l *Listener) Close() {
	l.router.remove(l.id)
}

// router owns the listener table and fans incoming non-response frames
// out to every matching listener.
type router struct {
	mu        syncutil.RWMutex
	listeners map[uint64]*Listener
	nextID    uint64
	closed    bool
}

func newRouter() *router {
	return &router{
		listeners: make(map[uint64]*Listener),
	}
}

// listen registers a new listener. buffer <= 0 gets a small default.
func (r *router) listen(filter Filter, buffer int) *Listener {
	if buffer <= 0 {
		buffer = defaultListenerBuffer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	l := &Listener{
		router: r,
		ch:     make(chan *Frame, buffer),
		filter: filter,
		id:     r.nextID,
	}
	if r.closed {
		close(l.ch)
		return l
	}
	r.listeners[l.id] = l
	return l
}

// dispatch delivers fr to every listener whose filter matches. When a
// listener's buffer is full the oldest queued notification is dropped to
// make room and the drop counter increments.
func (r *router) dispatch(fr *Frame) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.listeners {
		if !l.filter.matches(fr) {
			continue
		}
		select {
		case l.ch <- fr:
		default:
			// Full: evict the oldest and retry once. If a consumer
			// raced us and drained the channel, the retry lands.
			select {
			case <-l.ch:
				l.drops.Add(1)
			default:
			}
			select {
			case l.ch <- fr:
			default:
				l.drops.Add(1)
			}
		}
	}
}

func (r *router) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listeners[id]
	if !ok {
		return
	}
	delete(r.listeners, id)
	close(l.ch)
}

// closeAll unregisters every listener and closes their channels. Called on
// disconnect; subsequent listen calls return an already-closed listener.
func (r *router) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, l := range r.listeners {
		delete(r.listeners, id)
		close(l.ch)
	}
	r.closed = true
}
