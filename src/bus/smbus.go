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

/*
Package bus connects the clock generator driver to a Linux I2C adapter.

SMBus speaks the single byte register protocol of the Si5351 through
/dev/i2c-N. Each transaction opens the adapter, selects the slave address and
closes it again, so a bus that is unplugged and replugged recovers on the next
retry without any state to reset.
*/
package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/platinasystems/i2c"
)

// ErrUnsupported is returned for transfers that are not a single byte
// register read or write.
var ErrUnsupported = errors.New("bus: unsupported transfer")

// SMBus is a Linux I2C adapter used through SMBus byte-data transfers.
type SMBus struct {
	mu     sync.Mutex
	number int
}

// NewSMBus returns the adapter /dev/i2c-<number>. Nothing is opened until the
// first transaction.
func NewSMBus(number int) *SMBus {
	return &SMBus{number: number}
}

func (b *SMBus) String() string {
	return fmt.Sprintf("/dev/i2c-%d", b.number)
}

/*
Tx performs one transfer with the device at addr.

	w = {reg, value}, r = nil   writes value to reg
	w = {reg},        r = [1]   reads reg
	w = {},           r = [1]   reads a byte without a register (probe)
*/
func (b *SMBus) Tx(addr uint16, w, r []byte) error {
	switch {
	case len(w) == 2 && len(r) == 0:
		_, err := b.do(addr, i2c.Write, w[0], i2c.ByteData, w[1])
		return err
	case len(w) == 1 && len(r) == 1:
		v, err := b.do(addr, i2c.Read, w[0], i2c.ByteData, 0)
		r[0] = v
		return err
	case len(w) == 0 && len(r) == 1:
		v, err := b.do(addr, i2c.Read, 0, i2c.Byte, 0)
		r[0] = v
		return err
	}
	return fmt.Errorf("%w: write %d, read %d bytes", ErrUnsupported, len(w), len(r))
}

// ReadRegister reads len(buf) consecutive registers starting at reg.
func (b *SMBus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	for i := range buf {
		if err := b.Tx(uint16(addr), []byte{reg + uint8(i)}, buf[i:i+1]); err != nil {
			return err
		}
	}
	return nil
}

// WriteRegister writes buf to consecutive registers starting at reg.
func (b *SMBus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	for i, v := range buf {
		if err := b.Tx(uint16(addr), []byte{reg + uint8(i), v}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *SMBus) do(addr uint16, rw i2c.RW, reg uint8, size i2c.SMBusSize, value uint8) (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		bus i2c.Bus
		sd  i2c.SMBusData
	)
	if err := bus.Open(b.number); err != nil {
		return 0, fmt.Errorf("%s: %w", b, err)
	}
	defer bus.Close()

	if err := bus.ForceSlaveAddress(int(addr)); err != nil {
		return 0, fmt.Errorf("%s: address 0x%02X: %w", b, addr, err)
	}
	sd[0] = value
	if err := bus.Do(rw, reg, size, &sd); err != nil {
		return 0, fmt.Errorf("%s: 0x%02X reg %d: %w", b, addr, reg, err)
	}
	return sd[0], nil
}
