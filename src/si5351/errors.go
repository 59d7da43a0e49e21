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
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is.
var (
	// bus level, already retried
	ErrIO           = errors.New("si5351: bus i/o failed")
	ErrVerification = errors.New("si5351: register read-back mismatch")

	// planning, nothing touched
	ErrOutOfRange     = errors.New("si5351: frequency out of range")
	ErrNoValidDivider = errors.New("si5351: no valid output divider")

	// bring-up, device left faulted
	ErrSysInitTimeout  = errors.New("si5351: SYS_INIT did not clear")
	ErrCrystalMismatch = errors.New("si5351: crystal load capacitance mismatch")
	ErrLockTimeout     = errors.New("si5351: PLLA did not lock")

	// per operation
	ErrNotReady       = errors.New("si5351: device not ready")
	ErrInvalidChannel = errors.New("si5351: invalid channel")
)

// TransportError reports a register transaction that failed after all of its
// attempts. Kind is ErrIO or ErrVerification.
type TransportError struct {
	Kind     error
	Op       string // "read" or "write"
	Reg      uint8
	Expected uint8 // value written, for writes
	Actual   uint8 // last value read back, for verification failures
	Attempts int
	Err      error // last underlying bus error, if any
}

func (e *TransportError) Error() string {
	if e.Kind == ErrVerification {
		return fmt.Sprintf("%v: reg %d (0x%02X) wrote 0x%02X, read 0x%02X after %d attempts",
			e.Kind, e.Reg, e.Reg, e.Expected, e.Actual, e.Attempts)
	}
	return fmt.Sprintf("%v: %s reg %d (0x%02X) after %d attempts: %v",
		e.Kind, e.Op, e.Reg, e.Reg, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PlanError reports a frequency that cannot be synthesized.
type PlanError struct {
	Kind error
	Freq uint32
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%v: %d Hz", e.Kind, e.Freq)
}

func (e *PlanError) Unwrap() error { return e.Kind }

// LockError reports that LOL_A or SYS_INIT stayed set for every poll.
type LockError struct {
	Attempts int
	Status   uint8 // last status observed
	Err      error // last read failure, if the last poll could not read status
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%v after %d polls, status 0x%02X", ErrLockTimeout, e.Attempts, e.Status)
}

func (e *LockError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLockTimeout}
	}
	return []error{ErrLockTimeout, e.Err}
}

// InitError reports a failed bring-up. Kind is ErrSysInitTimeout,
// ErrCrystalMismatch or ErrLockTimeout, or nil when a transport error in Err
// aborted the sequence.
type InitError struct {
	Kind   error
	Phase  State // phase that failed
	Status uint8 // last status register value read
	Reg    uint8 // offending register
	Value  uint8 // value read from Reg
	Err    error
}

func (e *InitError) Error() string {
	kind := e.Kind
	if kind == nil {
		kind = e.Err
	}
	return fmt.Sprintf("si5351: init failed in %s: %v (status 0x%02X, reg %d = 0x%02X)",
		e.Phase, kind, e.Status, e.Reg, e.Value)
}

func (e *InitError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ControlError reports a failed channel operation. It never changes the device
// state, so the caller may retry. Kind is ErrNotReady, ErrInvalidChannel or
// ErrLockTimeout, or nil when a transport error in Err aborted the operation.
type ControlError struct {
	Kind    error
	Op      string
	Channel int
	State   State
	Status  uint8
	Err     error
}

func (e *ControlError) Error() string {
	switch {
	case e.Kind == ErrNotReady:
		return fmt.Sprintf("%v: %s CLK%d in state %s", e.Kind, e.Op, e.Channel, e.State)
	case e.Kind == ErrLockTimeout:
		return fmt.Sprintf("si5351: %s CLK%d: %v (status 0x%02X)", e.Op, e.Channel, e.Kind, e.Status)
	case e.Kind != nil:
		return fmt.Sprintf("%v: %s CLK%d", e.Kind, e.Op, e.Channel)
	}
	return fmt.Sprintf("si5351: %s CLK%d: %v", e.Op, e.Channel, e.Err)
}

func (e *ControlError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
