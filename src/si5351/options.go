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

import "time"

// DefaultAddress is the 7-bit bus address of a Si5351A.
const DefaultAddress = 0x60

// Config holds the tunables of a Device and its Transport.
type Config struct {
	Address uint16

	// Retries is the total number of attempts for one register transaction.
	Retries int
	// RetryDelay and RetryMaxDelay bound the backoff between attempts.
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration

	// SelfClearing registers are written without read-back verification.
	SelfClearing []uint8

	SysInitPolls    int
	SysInitInterval time.Duration
	LockPolls       int
	LockInterval    time.Duration
	// LockCycles is the number of crystal/PLLA/reset cycles tried during bring-up.
	LockCycles int
	// SettleTime is waited after every PLL reset.
	SettleTime time.Duration

	CrystalLoad uint8

	// Multipliers scale the requested frequency of a channel before planning,
	// for boards with a divider after the output.
	Multipliers [Channels]uint32

	Observer Observer
	Sleep    func(time.Duration)
}

func defaultConfig() Config {
	return Config{
		Address:         DefaultAddress,
		Retries:         5,
		RetryDelay:      50 * time.Millisecond,
		RetryMaxDelay:   200 * time.Millisecond,
		SelfClearing:    append([]uint8(nil), defaultSelfClearing...),
		SysInitPolls:    100,
		SysInitInterval: 50 * time.Millisecond,
		LockPolls:       50,
		LockInterval:    50 * time.Millisecond,
		LockCycles:      3,
		SettleTime:      100 * time.Millisecond,
		CrystalLoad:     CrystalLoad10pF,
		Multipliers:     [Channels]uint32{1, 1, 1},
		Sleep:           time.Sleep,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithAddress sets the bus address of the device.
func WithAddress(addr uint16) Option {
	return func(c *Config) {
		c.Address = addr
	}
}

// WithRetries sets the number of attempts for each register transaction.
// Values below one are ignored.
func WithRetries(n int) Option {
	return func(c *Config) {
		if n >= 1 {
			c.Retries = n
		}
	}
}

// WithRetryDelay sets the first and the largest delay between attempts.
func WithRetryDelay(min, max time.Duration) Option {
	return func(c *Config) {
		c.RetryDelay = min
		c.RetryMaxDelay = max
		if c.RetryMaxDelay < min {
			c.RetryMaxDelay = min
		}
	}
}

// WithSelfClearing adds registers to the set written without verification.
func WithSelfClearing(regs ...uint8) Option {
	return func(c *Config) {
		c.SelfClearing = append(c.SelfClearing, regs...)
	}
}

// WithObserver installs the diagnostic event sink.
//
// Example:
//
//	dev := si5351.New(bus, si5351.WithObserver(func(e si5351.Event) {
//	    fmt.Println(e)
//	}))
func WithObserver(o Observer) Option {
	return func(c *Config) {
		c.Observer = o
	}
}

// WithSleep replaces time.Sleep for every delay the device waits.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}

func WithSysInitPolls(n int, interval time.Duration) Option {
	return func(c *Config) {
		if n >= 1 {
			c.SysInitPolls = n
		}
		c.SysInitInterval = interval
	}
}

func WithLockPolls(n int, interval time.Duration) Option {
	return func(c *Config) {
		if n >= 1 {
			c.LockPolls = n
		}
		c.LockInterval = interval
	}
}

func WithLockCycles(n int) Option {
	return func(c *Config) {
		if n >= 1 {
			c.LockCycles = n
		}
	}
}

func WithSettleTime(d time.Duration) Option {
	return func(c *Config) {
		c.SettleTime = d
	}
}

// WithCrystalLoad sets the code written to the crystal load capacitance
// register and expected back from it.
func WithCrystalLoad(code uint8) Option {
	return func(c *Config) {
		c.CrystalLoad = code
	}
}

// WithOutputMultiplier makes SetFrequency plan m times the requested
// frequency on the channel. Out-of-range channels and zero are ignored.
func WithOutputMultiplier(channel int, m uint32) Option {
	return func(c *Config) {
		if channel >= 0 && channel < Channels && m > 0 {
			c.Multipliers[channel] = m
		}
	}
}
