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
	"fmt"

	"clockgen/src/support"
)

// SetFrequency plans freq (times the channel's output multiplier) and applies
// it to channel with the output enabled. The plan is returned even when only
// the PLL relock failed.
func (d *Device) SetFrequency(channel int, freq uint32) (FrequencyPlan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkChannel("set", channel); err != nil {
		return FrequencyPlan{}, err
	}
	target := uint64(freq) * uint64(d.cfg.Multipliers[channel])
	if target > MaxFreq {
		return FrequencyPlan{}, &PlanError{Kind: ErrOutOfRange, Freq: freq}
	}
	plan, err := Plan(uint32(target))
	if err != nil {
		return FrequencyPlan{}, err
	}
	return plan, d.apply("set", channel, plan, true)
}

// Apply writes plan to the Multisynth and control registers of channel, then
// resets PLLA and waits for it to lock. The output is enabled only if enable
// is set; otherwise the enable register is left alone.
//
// A lock failure is returned as a *ControlError but the registers stay
// written; calling Apply again is the way to retry.
func (d *Device) Apply(channel int, plan FrequencyPlan, enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkChannel("apply", channel); err != nil {
		return err
	}
	return d.apply("apply", channel, plan, enable)
}

func (d *Device) apply(op string, channel int, plan FrequencyPlan, enable bool) error {
	base := multisynthBase(channel)
	for i, v := range plan.Registers() {
		if err := d.t.Write(base+uint8(i), v); err != nil {
			return d.controlError(op, channel, nil, err)
		}
	}
	if err := d.t.Write(controlRegister(channel), plan.control()); err != nil {
		return d.controlError(op, channel, nil, err)
	}
	if enable {
		if err := d.setOutput(channel, true); err != nil {
			return d.controlError(op, channel, nil, err)
		}
	}

	// a new Multisynth divider can knock the shared PLLA out of lock
	if err := d.t.Write(RegPLLReset, PLLAReset); err != nil {
		return d.controlError(op, channel, nil, err)
	}
	d.sleep(d.cfg.SettleTime)
	if err := d.lock.AwaitLock(d.cfg.LockPolls, d.cfg.LockInterval); err != nil {
		d.cfg.Observer.emit(Event{Kind: EventLockLost, Reg: RegStatus, Value: d.lastStatus, Err: err})
		return d.controlError(op, channel, ErrLockTimeout, err)
	}
	return nil
}

// Enable turns on the output of channel, leaving the other outputs as they are.
func (d *Device) Enable(channel int) error {
	return d.output("enable", channel, true)
}

// Disable turns off the output of channel, leaving the other outputs as they are.
func (d *Device) Disable(channel int) error {
	return d.output("disable", channel, false)
}

func (d *Device) output(op string, channel int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkChannel(op, channel); err != nil {
		return err
	}
	if err := d.setOutput(channel, on); err != nil {
		return d.controlError(op, channel, nil, err)
	}
	return nil
}

// setOutput is a read-modify-write of the enable register; d.mu must be held
// so that two channels cannot lose each other's bit.
func (d *Device) setOutput(channel int, on bool) error {
	v, err := d.t.Read(RegOutputEnable)
	if err != nil {
		return err
	}
	mask := uint8(1) << channel
	if on {
		v &^= mask
	} else {
		v |= mask
	}
	return d.t.Write(RegOutputEnable, v)
}

func (d *Device) checkChannel(op string, channel int) error {
	if d.state != Ready {
		return &ControlError{Kind: ErrNotReady, Op: op, Channel: channel, State: d.state, Status: d.lastStatus}
	}
	if channel < 0 || channel >= Channels {
		return &ControlError{Kind: ErrInvalidChannel, Op: op, Channel: channel, State: d.state}
	}
	return nil
}

func (d *Device) controlError(op string, channel int, kind, err error) *ControlError {
	return &ControlError{
		Kind:    kind,
		Op:      op,
		Channel: channel,
		State:   d.state,
		Status:  d.lastStatus,
		Err:     err,
	}
}

// ChannelStatus is what the registers of one output currently say.
type ChannelStatus struct {
	Channel     int
	Enabled     bool
	PoweredDown bool
	IntegerMode bool
	Locked      bool
	Control     uint8
	Registers   [8]uint8
	P1, P2, P3  uint32
	RDiv        uint8
	DivBy4      uint8
	A, B, C     uint32  // Multisynth divider decoded from P1..P3
	Freq        float64 // output frequency the registers produce (Hz), 0 if undecodable
}

func (s ChannelStatus) String() string {
	state := "off"
	if s.Enabled {
		state = "on"
	}
	return fmt.Sprintf("CLK%d %s: %.3f Hz, ms_div=%d+%d/%d, R=%d, P1=%d, P2=%d, P3=%d, divby4=%d, control=0x%02X",
		s.Channel, state, s.Freq, s.A, s.B, s.C, 1<<s.RDiv, s.P1, s.P2, s.P3, s.DivBy4, s.Control)
}

// ReadChannel reads back and decodes the registers of channel. It works in
// any state since it only reads.
func (d *Device) ReadChannel(channel int) (ChannelStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if channel < 0 || channel >= Channels {
		return ChannelStatus{}, &ControlError{Kind: ErrInvalidChannel, Op: "read", Channel: channel, State: d.state}
	}
	s := ChannelStatus{Channel: channel}
	base := multisynthBase(channel)
	for i := range s.Registers {
		v, err := d.t.Read(base + uint8(i))
		if err != nil {
			return s, d.controlError("read", channel, nil, err)
		}
		s.Registers[i] = v
	}
	control, err := d.t.Read(controlRegister(channel))
	if err != nil {
		return s, d.controlError("read", channel, nil, err)
	}
	enable, err := d.t.Read(RegOutputEnable)
	if err != nil {
		return s, d.controlError("read", channel, nil, err)
	}
	status, err := d.readStatus()
	if err != nil {
		return s, d.controlError("read", channel, nil, err)
	}

	s.Control = control
	s.PoweredDown = control&clkPowerDown != 0
	s.IntegerMode = control&clkIntegerMode != 0
	s.Enabled = enable&(1<<channel) == 0
	s.Locked = status&(StatusLOLA|StatusSysInit) == 0
	s.P1, s.P2, s.P3, s.RDiv, s.DivBy4 = unpackMultisynth(s.Registers)
	s.A, s.B, s.C, s.Freq = decodeDivider(s.P1, s.P2, s.P3, s.RDiv, s.DivBy4)
	return s, nil
}

// decodeDivider turns register fields back into a + b/c and the resulting
// output frequency. The divider is (128*P3*a + 128*b) = (P1+512)*P3 + P2 over
// 128*P3; the fraction is reduced to the best one with c < 2^20.
func decodeDivider(p1, p2, p3 uint32, rDiv, divBy4 uint8) (a, b, c uint32, freq float64) {
	r := float64(uint32(1) << rDiv)
	if divBy4 == divBy4Encoding {
		return 4, 0, 1, VCOFreq / 4 / r
	}
	if p3 == 0 {
		return 0, 0, 0, 0
	}
	num := (uint64(p1)+512)*uint64(p3) + uint64(p2)
	den := 128 * uint64(p3)
	whole := num / den
	fb, fc, _ := support.NearestFraction(num%den, den, fractionDenom)
	if fb >= fc {
		whole += fb / fc
		fb %= fc
		if fb == 0 {
			fc = 1
		}
	}
	freq = float64(VCOFreq) * float64(den) / (float64(num) * r)
	return uint32(whole), uint32(fb), uint32(fc), freq
}

// Shutdown disables every output, powers down every clock driver, resets both
// PLLs and clears the sticky interrupts. Every step is tried even if an
// earlier one failed; the failures are returned joined. Shutdown does not
// change the bring-up state and is safe in any state.
func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	step := func(name string, fn func() error) {
		err := fn()
		d.cfg.Observer.emit(Event{Kind: EventShutdownStep, Step: name, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("disable outputs", func() error {
		return d.t.Write(RegOutputEnable, 0xFF)
	})
	step("power down drivers", func() error {
		var failed []error
		for reg := RegClk0Control; reg <= RegClk7Control; reg++ {
			if err := d.t.Write(uint8(reg), clkPowerDown); err != nil {
				failed = append(failed, err)
			}
		}
		return errors.Join(failed...)
	})
	step("reset PLLs", func() error {
		err := d.t.Write(RegPLLReset, PLLAReset|PLLBReset)
		d.sleep(d.cfg.SettleTime)
		return err
	})
	step("clear interrupts", func() error {
		return d.t.Write(RegInterrupt, 0x00)
	})
	step("read status", func() error {
		_, err := d.readStatus()
		return err
	})
	return errors.Join(errs...)
}
