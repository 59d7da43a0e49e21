/*
 * Copyright 2025 Ted Dunning
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package si5351

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// State is the bring-up state of a Device. The phases between Uninitialized
// and Ready only exist while Initialize runs.
type State int

const (
	Uninitialized State = iota
	WaitingSysInit
	ConfiguringCrystal
	ConfiguringPLLA
	ResettingPLLA
	WaitingLock
	Ready
	Faulted
)

var stateNames = [...]string{
	Uninitialized:      "Uninitialized",
	WaitingSysInit:     "WaitingSysInit",
	ConfiguringCrystal: "ConfiguringCrystal",
	ConfiguringPLLA:    "ConfiguringPLLA",
	ResettingPLLA:      "ResettingPLLA",
	WaitingLock:        "WaitingLock",
	Ready:              "Ready",
	Faulted:            "Faulted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Initializing reports whether s is one of the bring-up phases.
func (s State) Initializing() bool {
	return s > Uninitialized && s < Ready
}

/*
Device owns one Si5351A on a bus: its Transport, its bring-up state and the
lock that makes every multi-register sequence atomic with respect to other
callers of the same Device.

Typical use:

	dev := si5351.New(bus)
	if err := dev.Initialize(); err != nil {
	    return err
	}
	plan, err := dev.SetFrequency(0, 10_000_000)
*/
type Device struct {
	mu         sync.Mutex
	cfg        Config
	t          *Transport
	lock       *LockMonitor
	state      State
	lastStatus uint8
	last       InitReport
}

// New creates a Device on bus. Nothing is written until Initialize.
func New(bus drivers.I2C, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	d := &Device{
		cfg: cfg,
		t:   newTransport(bus, cfg),
	}
	d.lock = &LockMonitor{
		read:     d.readStatus,
		sleep:    d.sleep,
		observer: cfg.Observer,
	}
	return d
}

// State returns the current bring-up state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ReadRaw returns the value of any register.
func (d *Device) ReadRaw(reg uint8) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if reg == RegStatus {
		return d.readStatus()
	}
	return d.t.Read(reg)
}

// Status returns the status register (SYS_INIT, LOL_B, LOL_A, LOS_XTAL, REVID).
func (d *Device) Status() (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readStatus()
}

// AwaitLock polls the status register until PLLA reports lock.
func (d *Device) AwaitLock(maxAttempts int, interval time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lock.AwaitLock(maxAttempts, interval)
}

func (d *Device) readStatus() (uint8, error) {
	s, err := d.t.Read(RegStatus)
	if err == nil {
		d.lastStatus = s
	}
	return s, err
}

func (d *Device) setState(s State) {
	if d.state == s {
		return
	}
	d.state = s
	d.cfg.Observer.emit(Event{Kind: EventState, State: s})
}

func (d *Device) sleep(t time.Duration) {
	if t > 0 {
		d.cfg.Sleep(t)
	}
}
