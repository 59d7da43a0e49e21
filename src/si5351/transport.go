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

	"github.com/jpillora/backoff"
	"tinygo.org/x/drivers"
)

// errReadBack marks a write attempt whose read-back differed.
var errReadBack = errors.New("read-back differs")

/*
Transport reads and writes single byte registers over a bus that is expected
to drop or corrupt the occasional transaction.

Every transaction is attempted up to Config.Retries times with a growing delay
in between. Writes are read back and compared unless the register is in the
self-clearing set: the PLL reset register, for instance, reads zero again as
soon as the reset has been triggered, so comparing it would always fail.

A Transport serializes its own transactions. Callers that need a read and a
write to be seen as one step must hold their own lock around both, as Device
does.
*/
type Transport struct {
	mu           sync.Mutex
	bus          drivers.I2C
	cfg          Config
	selfClearing map[uint8]bool
}

// NewTransport wraps bus with retries and write verification.
func NewTransport(bus drivers.I2C, opts ...Option) *Transport {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newTransport(bus, cfg)
}

func newTransport(bus drivers.I2C, cfg Config) *Transport {
	t := &Transport{
		bus:          bus,
		cfg:          cfg,
		selfClearing: make(map[uint8]bool, len(cfg.SelfClearing)),
	}
	for _, reg := range cfg.SelfClearing {
		t.selfClearing[reg] = true
	}
	return t
}

// SelfClearing reports whether writes to reg skip verification.
func (t *Transport) SelfClearing(reg uint8) bool {
	return t.selfClearing[reg]
}

// Read returns the value of reg.
func (t *Transport) Read(reg uint8) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, n, err := retry(t, func(attempt int) (uint8, error) {
		v, err := t.rawRead(reg)
		if err != nil {
			t.cfg.Observer.emit(Event{Kind: EventReadError, Reg: reg, Attempt: attempt, Err: err})
		}
		return v, err
	})
	if err != nil {
		return 0, &TransportError{Kind: ErrIO, Op: "read", Reg: reg, Attempts: n, Err: err}
	}
	return v, nil
}

// Write stores value in reg and, unless reg is self-clearing, reads it back.
// A failed write or a mismatching read-back repeats the whole cycle.
func (t *Transport) Write(reg, value uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	verify := !t.selfClearing[reg]
	var actual uint8
	_, n, err := retry(t, func(attempt int) (struct{}, error) {
		t.cfg.Observer.emit(Event{Kind: EventWrite, Reg: reg, Value: value, Attempt: attempt})
		if err := t.rawWrite(reg, value); err != nil {
			t.cfg.Observer.emit(Event{Kind: EventWriteError, Reg: reg, Attempt: attempt, Err: err})
			return struct{}{}, err
		}
		if !verify {
			return struct{}{}, nil
		}
		v, err := t.rawRead(reg)
		if err != nil {
			t.cfg.Observer.emit(Event{Kind: EventReadError, Reg: reg, Attempt: attempt, Err: err})
			return struct{}{}, err
		}
		if v != value {
			actual = v
			t.cfg.Observer.emit(Event{Kind: EventVerifyMismatch, Reg: reg, Value: v, Expected: value, Attempt: attempt})
			return struct{}{}, errReadBack
		}
		return struct{}{}, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errReadBack):
		return &TransportError{Kind: ErrVerification, Op: "write", Reg: reg, Expected: value, Actual: actual, Attempts: n}
	default:
		return &TransportError{Kind: ErrIO, Op: "write", Reg: reg, Expected: value, Attempts: n, Err: err}
	}
}

func (t *Transport) rawRead(reg uint8) (uint8, error) {
	var buf [1]byte
	err := t.bus.Tx(t.cfg.Address, []byte{reg}, buf[:])
	return buf[0], err
}

func (t *Transport) rawWrite(reg, value uint8) error {
	return t.bus.Tx(t.cfg.Address, []byte{reg, value}, nil)
}

// retry runs op until it succeeds or Config.Retries attempts have failed. It
// returns the last result, the number of attempts made and the last error.
func retry[T any](t *Transport, op func(attempt int) (T, error)) (T, int, error) {
	b := &backoff.Backoff{
		Min:    t.cfg.RetryDelay,
		Max:    t.cfg.RetryMaxDelay,
		Factor: 2,
		Jitter: false,
	}
	var (
		v   T
		err error
	)
	attempts := t.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err = op(attempt)
		if err == nil {
			return v, attempt, nil
		}
		// backoff substitutes its own default for a zero Min
		if attempt < attempts && t.cfg.RetryDelay > 0 {
			t.sleep(b.Duration())
		}
	}
	return v, attempts, err
}

func (t *Transport) sleep(d time.Duration) {
	if d > 0 {
		t.cfg.Sleep(d)
	}
}
