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

import "fmt"

type EventKind int

const (
	EventWrite          EventKind = iota // a register write was issued
	EventWriteError                      // the bus rejected a write
	EventReadError                       // the bus rejected a read
	EventVerifyMismatch                  // read-back differed from the value written
	EventState                           // the device moved to a new state
	EventRevision                        // REVID read after SYS_INIT cleared
	EventPLLAMismatch                    // MSNA read-back differed during bring-up
	EventResetReadback                   // the PLL reset register did not read back as zero
	EventLocked                          // LOL_A and SYS_INIT both clear
	EventLockLost                        // a lock poll timed out
	EventShutdownStep                    // one shutdown step finished, Err set on failure
)

var eventNames = [...]string{
	EventWrite:          "write",
	EventWriteError:     "write-error",
	EventReadError:      "read-error",
	EventVerifyMismatch: "verify-mismatch",
	EventState:          "state",
	EventRevision:       "revision",
	EventPLLAMismatch:   "plla-mismatch",
	EventResetReadback:  "reset-readback",
	EventLocked:         "locked",
	EventLockLost:       "lock-lost",
	EventShutdownStep:   "shutdown-step",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a diagnostic record. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Reg      uint8
	Value    uint8 // value written or read
	Expected uint8
	Attempt  int
	State    State
	Step     string
	Err      error
}

func (e Event) String() string {
	switch e.Kind {
	case EventWrite:
		return fmt.Sprintf("write reg %d = 0x%02X", e.Reg, e.Value)
	case EventWriteError, EventReadError:
		return fmt.Sprintf("%s reg %d (attempt %d): %v", e.Kind, e.Reg, e.Attempt, e.Err)
	case EventVerifyMismatch:
		return fmt.Sprintf("verify reg %d: wrote 0x%02X, read 0x%02X (attempt %d)", e.Reg, e.Expected, e.Value, e.Attempt)
	case EventState:
		return fmt.Sprintf("state %s", e.State)
	case EventRevision:
		return fmt.Sprintf("revision %d", e.Value)
	case EventPLLAMismatch:
		return fmt.Sprintf("PLLA reg %d = 0x%02X, expected 0x%02X", e.Reg, e.Value, e.Expected)
	case EventResetReadback:
		return fmt.Sprintf("PLL reset reg %d = 0x%02X after reset", e.Reg, e.Value)
	case EventLocked:
		return fmt.Sprintf("PLLA locked, status 0x%02X", e.Value)
	case EventLockLost:
		return fmt.Sprintf("PLLA lock attempt %d failed, status 0x%02X", e.Attempt, e.Value)
	case EventShutdownStep:
		if e.Err != nil {
			return fmt.Sprintf("shutdown %s: %v", e.Step, e.Err)
		}
		return fmt.Sprintf("shutdown %s", e.Step)
	}
	return e.Kind.String()
}

// Observer receives diagnostic events. It is called synchronously while the
// bus is held and must not call back into the Device.
type Observer func(Event)

func (o Observer) emit(e Event) {
	if o != nil {
		o(e)
	}
}
