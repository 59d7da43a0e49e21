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

// LockMonitor waits for PLLA to lock after anything that disturbs it.
type LockMonitor struct {
	read     func() (uint8, error)
	sleep    func(time.Duration)
	observer Observer
}

// NewLockMonitor polls the status register through t.
func NewLockMonitor(t *Transport) *LockMonitor {
	return &LockMonitor{
		read:     func() (uint8, error) { return t.Read(RegStatus) },
		sleep:    t.sleep,
		observer: t.cfg.Observer,
	}
}

// AwaitLock polls up to maxAttempts times, interval apart, and returns nil on
// the first poll with LOL_A and SYS_INIT both clear. Otherwise it returns a
// *LockError with the last status seen. A poll that cannot read the status
// counts as not locked.
func (m *LockMonitor) AwaitLock(maxAttempts int, interval time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var (
		status  uint8
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s, err := m.read()
		if err == nil {
			status, lastErr = s, nil
			if s&(StatusLOLA|StatusSysInit) == 0 {
				m.observer.emit(Event{Kind: EventLocked, Reg: RegStatus, Value: s, Attempt: attempt})
				return nil
			}
		} else {
			lastErr = err
		}
		if attempt < maxAttempts && interval > 0 {
			m.sleep(interval)
		}
	}
	return &LockError{Attempts: maxAttempts, Status: status, Err: lastErr}
}
