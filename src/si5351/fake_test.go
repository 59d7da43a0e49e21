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
	"errors"
	"sync"
	"time"
)

var errNack = errors.New("fake: no acknowledge")

type regWrite struct {
	reg, value uint8
}

// fakeChip simulates the register file of a Si5351A behind a bus. Tests poke
// at its fields to make it misbehave.
type fakeChip struct {
	mu sync.Mutex

	regs   [256]uint8
	writes []regWrite
	reads  [256]int // reads per register

	// status, if set, replaces register 0 on every read
	status func() uint8
	// onRead, if set, may replace the value of the n-th read (from 0) of reg
	onRead func(reg uint8, n int) (uint8, bool)
	// stuck registers always read back the given value
	stuck map[uint8]uint8
	// failReads fails the next n reads
	failReads int
	// failWrites fails every write to these registers
	failWrites map[uint8]bool

	resets int // writes to the PLL reset register with PLLA set
}

func newFakeChip() *fakeChip {
	c := &fakeChip{
		stuck:      map[uint8]uint8{},
		failWrites: map[uint8]bool{},
	}
	c.regs[RegOutputEnable] = 0xFF
	return c
}

func (c *fakeChip) Tx(addr uint16, w, r []byte) error {
	if addr != DefaultAddress {
		return errNack
	}
	switch {
	case len(w) == 2 && len(r) == 0:
		return c.write(w[0], w[1])
	case len(w) == 1 && len(r) == 1:
		v, err := c.read(w[0])
		r[0] = v
		return err
	}
	return errors.New("fake: unsupported transfer")
}

func (c *fakeChip) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return c.Tx(uint16(addr), []byte{reg}, buf)
}

func (c *fakeChip) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return c.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

func (c *fakeChip) write(reg, value uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, regWrite{reg, value})
	if c.failWrites[reg] {
		return errNack
	}
	c.regs[reg] = value
	switch reg {
	case RegPLLReset:
		if value&PLLAReset != 0 {
			c.resets++
		}
		c.regs[reg] = 0
	case RegInterrupt:
		c.regs[reg] = 0
	}
	return nil
}

func (c *fakeChip) read(reg uint8) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads > 0 {
		c.failReads--
		return 0, errNack
	}
	n := c.reads[reg]
	c.reads[reg]++
	if c.onRead != nil {
		if v, ok := c.onRead(reg, n); ok {
			return v, nil
		}
	}
	if v, ok := c.stuck[reg]; ok {
		return v, nil
	}
	if reg == RegStatus && c.status != nil {
		return c.status(), nil
	}
	return c.regs[reg], nil
}

func (c *fakeChip) reg(reg uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[reg]
}

func (c *fakeChip) readCount(reg uint8) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[reg]
}

// writesTo returns the values written to reg, in order.
func (c *fakeChip) writesTo(reg uint8) []uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var vs []uint8
	for _, w := range c.writes {
		if w.reg == reg {
			vs = append(vs, w.value)
		}
	}
	return vs
}

func (c *fakeChip) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeChip) resetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// recorder collects events and sleeps.
type recorder struct {
	mu     sync.Mutex
	events []Event
	sleeps []time.Duration
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) of(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var es []Event
	for _, e := range r.events {
		if e.Kind == kind {
			es = append(es, e)
		}
	}
	return es
}

func (r *recorder) options() []Option {
	return []Option{WithObserver(r.observe), WithSleep(r.sleep)}
}

func newTestDevice(chip *fakeChip, opts ...Option) (*Device, *recorder) {
	rec := &recorder{}
	return New(chip, append(rec.options(), opts...)...), rec
}

func newReadyDevice(chip *fakeChip, opts ...Option) (*Device, *recorder) {
	dev, rec := newTestDevice(chip, opts...)
	if err := dev.Initialize(); err != nil {
		panic("fake bring-up failed: " + err.Error())
	}
	return dev, rec
}
