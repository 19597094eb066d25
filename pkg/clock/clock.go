// Copyright 2025 Kadir Pekel
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

// Package clock provides an injectable source of time so reasoning-loop
// and autonomous-scheduler tests never depend on wall-clock timing.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source every timed component depends on instead of the
// time package directly: Now, Sleep and SetInterval.
type Clock interface {
	// Now returns the current time in Unix milliseconds.
	Now() int64

	// Sleep blocks the calling goroutine for the given duration.
	Sleep(d time.Duration)

	// SetInterval schedules fn to run every d until the returned cancel
	// func is called. Cancel is idempotent.
	SetInterval(fn func(), d time.Duration) (cancel func())
}

// Real is the production Clock backed by the actual system clock.
type Real struct{}

// New returns the production Clock.
func New() Clock { return Real{} }

// Now implements Clock.
func (Real) Now() int64 { return time.Now().UnixMilli() }

// Sleep implements Clock.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// SetInterval implements Clock using a time.Ticker run on its own goroutine.
func (Real) SetInterval(fn func(), d time.Duration) (cancel func()) {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(stop) })
	}
}
