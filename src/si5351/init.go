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

import "errors"

// Mismatch is a register whose read-back differed from what was written.
type Mismatch struct {
	Reg      uint8
	Expected uint8
	Actual   uint8
}

// InitReport describes the last bring-up, successful or not.
type InitReport struct {
	Revision uint8
	// Cycles is the number of crystal/PLLA/reset cycles run.
	Cycles int
	// Status is the last status register value read.
	Status uint8
	// PLLA holds the MSNA registers that did not read back as written. These
	// do not fail the bring-up.
	PLLA []Mismatch
	// ResetReadback is the PLL reset register read after the last reset, which
	// should be zero.
	ResetReadback uint8
}

// LastInit returns the report of the most recent Initialize.
func (d *Device) LastInit() InitReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.last
	r.PLLA = append([]Mismatch(nil), d.last.PLLA...)
	return r
}

/*
Initialize brings the device from power-on (or any previous state) to Ready:
PLLA locked at 800 MHz and every output disabled.

The sequence waits for SYS_INIT to clear, sets the crystal load, writes safe
defaults and the PLLA feedback divider, resets PLLA and waits for lock. If lock
does not come, the crystal/PLLA/reset part is repeated up to LockCycles times.

On failure the device is left Faulted and the error is an *InitError. Calling
Initialize again always restarts from the beginning.
*/
func (d *Device) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = InitReport{}
	err := d.initialize()
	d.last.Status = d.lastStatus
	if err != nil {
		d.setState(Faulted)
		return err
	}
	d.setState(Ready)
	return nil
}

func (d *Device) initialize() error {
	d.setState(WaitingSysInit)
	if err := d.waitSysInit(); err != nil {
		return err
	}
	d.last.Revision = d.lastStatus & StatusRevID
	d.cfg.Observer.emit(Event{Kind: EventRevision, Reg: RegStatus, Value: d.last.Revision})

	var lockErr error
	for cycle := 1; cycle <= d.cfg.LockCycles; cycle++ {
		d.last.Cycles = cycle

		d.setState(ConfiguringCrystal)
		if err := d.configureCrystal(); err != nil {
			return err
		}
		d.setState(ConfiguringPLLA)
		if err := d.configurePLLA(); err != nil {
			return err
		}
		d.setState(ResettingPLLA)
		d.resetPLLA()

		d.setState(WaitingLock)
		lockErr = d.lock.AwaitLock(d.cfg.LockPolls, d.cfg.LockInterval)
		if lockErr == nil {
			return nil
		}
		d.cfg.Observer.emit(Event{Kind: EventLockLost, Reg: RegStatus, Value: d.lastStatus, Attempt: cycle, Err: lockErr})
	}

	// the crystal load is the usual suspect, report what it holds now
	load, err := d.t.Read(RegCrystalLoad)
	if err != nil {
		lockErr = errors.Join(lockErr, err)
	}
	return &InitError{
		Kind:   ErrLockTimeout,
		Phase:  WaitingLock,
		Status: d.lastStatus,
		Reg:    RegCrystalLoad,
		Value:  load,
		Err:    lockErr,
	}
}

// waitSysInit polls until SYS_INIT clears. Read failures are polled through;
// the device may not answer while it is still starting.
func (d *Device) waitSysInit() error {
	var lastErr error
	for i := 0; i < d.cfg.SysInitPolls; i++ {
		s, err := d.readStatus()
		if err == nil {
			lastErr = nil
			if s&StatusSysInit == 0 {
				return nil
			}
		} else {
			lastErr = err
		}
		if i < d.cfg.SysInitPolls-1 {
			d.sleep(d.cfg.SysInitInterval)
		}
	}
	return &InitError{
		Kind:   ErrSysInitTimeout,
		Phase:  WaitingSysInit,
		Status: d.lastStatus,
		Reg:    RegStatus,
		Value:  d.lastStatus,
		Err:    lastErr,
	}
}

// configureCrystal sets the load capacitance. All frequency math assumes a
// known crystal load, so a wrong read-back stops the bring-up.
func (d *Device) configureCrystal() error {
	want := d.cfg.CrystalLoad
	if err := d.t.Write(RegCrystalLoad, want); err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.Kind == ErrVerification {
			return d.initError(ErrCrystalMismatch, ConfiguringCrystal, RegCrystalLoad, te.Actual, err)
		}
		return d.initError(nil, ConfiguringCrystal, RegCrystalLoad, 0, err)
	}
	got, err := d.t.Read(RegCrystalLoad)
	if err != nil {
		return d.initError(nil, ConfiguringCrystal, RegCrystalLoad, 0, err)
	}
	if got != want {
		return d.initError(ErrCrystalMismatch, ConfiguringCrystal, RegCrystalLoad, got, nil)
	}
	return nil
}

// configurePLLA disables every output, writes the safe defaults and sets the
// PLLA feedback Multisynth to the integer 32 (25 MHz * 32 = 800 MHz).
func (d *Device) configurePLLA() error {
	if err := d.t.Write(RegOutputEnable, 0xFF); err != nil {
		return d.initError(nil, ConfiguringPLLA, RegOutputEnable, 0, err)
	}
	for _, r := range safeDefaults {
		if err := d.t.Write(r.reg, r.value); err != nil {
			return d.initError(nil, ConfiguringPLLA, r.reg, 0, err)
		}
	}

	msna := packMultisynth(128*PLLAMultiplier-512, 0, 1, 0, 0)
	for i, v := range msna {
		reg := uint8(RegMSNA + i)
		if err := d.t.Write(reg, v); err != nil {
			return d.initError(nil, ConfiguringPLLA, reg, 0, err)
		}
	}

	d.last.PLLA = d.last.PLLA[:0]
	for i, want := range msna {
		reg := uint8(RegMSNA + i)
		got, err := d.t.Read(reg)
		if err != nil {
			return d.initError(nil, ConfiguringPLLA, reg, 0, err)
		}
		if got != want {
			d.last.PLLA = append(d.last.PLLA, Mismatch{Reg: reg, Expected: want, Actual: got})
			d.cfg.Observer.emit(Event{Kind: EventPLLAMismatch, Reg: reg, Value: got, Expected: want})
		}
	}
	return nil
}

// resetPLLA triggers a PLLA reset and waits for it to settle. Failures here
// are left for the lock poll to judge.
func (d *Device) resetPLLA() {
	if err := d.t.Write(RegPLLReset, PLLAReset); err != nil {
		return
	}
	d.sleep(d.cfg.SettleTime)
	v, err := d.t.Read(RegPLLReset)
	if err != nil {
		return
	}
	d.last.ResetReadback = v
	if v != 0 {
		d.cfg.Observer.emit(Event{Kind: EventResetReadback, Reg: RegPLLReset, Value: v})
	}
}

func (d *Device) initError(kind error, phase State, reg, value uint8, err error) *InitError {
	return &InitError{
		Kind:   kind,
		Phase:  phase,
		Status: d.lastStatus,
		Reg:    reg,
		Value:  value,
		Err:    err,
	}
}
