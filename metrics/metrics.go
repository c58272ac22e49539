// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics is a small, dependency-free instrumentation library in
// the shape of go-probeum's own metrics package: named counters and meters
// registered once at package-init time and read back by whatever exporter
// a host process wires up. It does not vendor rcrowley/go-metrics or wire
// an exporter (StatsD, InfluxDB, expvar) of its own; those are left to the
// embedding process, same as the teacher's package.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically adjustable integer count.
type Counter interface {
	Inc(delta int64)
	Dec(delta int64)
	Count() int64
}

type counter struct{ count int64 }

func (c *counter) Inc(delta int64) { atomic.AddInt64(&c.count, delta) }
func (c *counter) Dec(delta int64) { atomic.AddInt64(&c.count, -delta) }
func (c *counter) Count() int64    { return atomic.LoadInt64(&c.count) }

// Meter tracks the total count of an event. It keeps no rate and no
// per-window count; a caller wanting a rate samples Count over time.
type Meter interface {
	Mark(n int64)
	Count() int64
}

type meter struct{ count int64 }

func (m *meter) Mark(n int64) { atomic.AddInt64(&m.count, n) }
func (m *meter) Count() int64 { return atomic.LoadInt64(&m.count) }

// Timer records how long named operations take, keeping only count and
// total duration; callers wanting percentiles should sample externally.
type Timer interface {
	Update(d time.Duration)
	Count() int64
	Mean() time.Duration
}

type timerImpl struct {
	mu    sync.Mutex
	count int64
	total time.Duration
}

func (t *timerImpl) Update(d time.Duration) {
	t.mu.Lock()
	t.count++
	t.total += d
	t.mu.Unlock()
}

func (t *timerImpl) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *timerImpl) Mean() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.total / time.Duration(t.count)
}

// Registry is a named collection of metrics, matching the teacher's
// pattern of passing nil for "use the default registry".
type Registry interface {
	Register(name string, metric interface{})
	Get(name string) interface{}
	Each(func(string, interface{}))
}

type registry struct {
	mu sync.Mutex
	m  map[string]interface{}
}

// NewRegistry creates a standalone registry; most callers use nil with the
// NewRegistered* helpers and get DefaultRegistry instead.
func NewRegistry() Registry {
	return &registry{m: make(map[string]interface{})}
}

func (r *registry) Register(name string, metric interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[name] = metric
}

func (r *registry) Get(name string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[name]
}

func (r *registry) Each(f func(string, interface{})) {
	r.mu.Lock()
	snap := make(map[string]interface{}, len(r.m))
	for k, v := range r.m {
		snap[k] = v
	}
	r.mu.Unlock()
	for k, v := range snap {
		f(k, v)
	}
}

// DefaultRegistry is used whenever a NewRegistered* call is passed nil,
// same as the teacher's metrics.DefaultRegistry.
var DefaultRegistry = NewRegistry()

func resolve(r Registry) Registry {
	if r == nil {
		return DefaultRegistry
	}
	return r
}

// NewRegisteredCounter creates and registers a new Counter.
func NewRegisteredCounter(name string, r Registry) Counter {
	c := &counter{}
	resolve(r).Register(name, c)
	return c
}

// NewRegisteredMeter creates and registers a new Meter.
func NewRegisteredMeter(name string, r Registry) Meter {
	m := &meter{}
	resolve(r).Register(name, m)
	return m
}

// NewRegisteredTimer creates and registers a new Timer.
func NewRegisteredTimer(name string, r Registry) Timer {
	t := &timerImpl{}
	resolve(r).Register(name, t)
	return t
}
