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
	"testing"
	"time"
)

const clk1 = RegClk0Control + 1

func newTestTransport(chip *fakeChip, opts ...Option) (*Transport, *recorder) {
	rec := &recorder{}
	return NewTransport(chip, append(rec.options(), opts...)...), rec
}

func TestTransportReadWrite(t *testing.T) {
	chip := newFakeChip()
	tr, rec := newTestTransport(chip)

	if err := tr.Write(RegClk0Control, 0x4F); err != nil {
		t.Fatal(err)
	}
	if chip.reg(RegClk0Control) != 0x4F {
		t.Errorf("register holds 0x%02X", chip.reg(RegClk0Control))
	}
	v, err := tr.Read(RegClk0Control)
	if err != nil || v != 0x4F {
		t.Errorf("Read = 0x%02X, %v", v, err)
	}
	if n := rec.count(EventWrite); n != 1 {
		t.Errorf("%d write events, want 1", n)
	}
	if len(rec.sleeps) != 0 {
		t.Errorf("slept %v without any failure", rec.sleeps)
	}
}

func TestTransportVerificationExhausted(t *testing.T) {
	chip := newFakeChip()
	chip.stuck[clk1] = 0x55
	tr, rec := newTestTransport(chip, WithRetries(4))

	err := tr.Write(clk1, 0x0F)
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("Write = %v, expected verification failure", err)
	}
	if errors.Is(err, ErrIO) {
		t.Errorf("verification failure also matches ErrIO")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("%T is not a *TransportError", err)
	}
	if te.Attempts != 4 || te.Actual != 0x55 || te.Expected != 0x0F || te.Reg != clk1 {
		t.Errorf("error = %+v", te)
	}
	if n := len(chip.writesTo(clk1)); n != 4 {
		t.Errorf("%d writes, want exactly 4", n)
	}
	if n := rec.count(EventVerifyMismatch); n != 4 {
		t.Errorf("%d mismatch events, want 4", n)
	}
}

func TestTransportSelfClearing(t *testing.T) {
	chip := newFakeChip()
	tr, _ := newTestTransport(chip)

	for _, reg := range []uint8{RegInterrupt, RegPLLReset, RegFanout} {
		if !tr.SelfClearing(reg) {
			t.Errorf("register %d should be self-clearing", reg)
		}
	}
	// reads back 0 right away and must not be treated as a mismatch
	if err := tr.Write(RegPLLReset, PLLAReset); err != nil {
		t.Fatal(err)
	}
	if n := chip.readCount(RegPLLReset); n != 0 {
		t.Errorf("self-clearing register read back %d times", n)
	}
	if got := chip.writesTo(RegPLLReset); len(got) != 1 || got[0] != PLLAReset {
		t.Errorf("writes = % X", got)
	}
}

func TestTransportExtraSelfClearing(t *testing.T) {
	chip := newFakeChip()
	chip.stuck[RegSpreadSpec] = 0x80
	tr, _ := newTestTransport(chip, WithSelfClearing(RegSpreadSpec))

	if err := tr.Write(RegSpreadSpec, 0x00); err != nil {
		t.Fatalf("Write = %v", err)
	}
	if !tr.SelfClearing(RegPLLReset) {
		t.Errorf("defaults were replaced instead of extended")
	}
}

func TestTransportReadRetry(t *testing.T) {
	chip := newFakeChip()
	chip.regs[RegCrystalLoad] = 0xD2
	chip.failReads = 2
	tr, rec := newTestTransport(chip, WithRetryDelay(10*time.Millisecond, 40*time.Millisecond))

	v, err := tr.Read(RegCrystalLoad)
	if err != nil || v != 0xD2 {
		t.Fatalf("Read = 0x%02X, %v", v, err)
	}
	if n := rec.count(EventReadError); n != 2 {
		t.Errorf("%d read errors, want 2", n)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(rec.sleeps) != len(want) {
		t.Fatalf("slept %v, want %v", rec.sleeps, want)
	}
	for i := range want {
		if rec.sleeps[i] != want[i] {
			t.Errorf("slept %v, want %v", rec.sleeps, want)
		}
	}
}

func TestTransportBackoffCapped(t *testing.T) {
	chip := newFakeChip()
	chip.failReads = 100
	tr, rec := newTestTransport(chip, WithRetries(5), WithRetryDelay(10*time.Millisecond, 25*time.Millisecond))

	_, err := tr.Read(RegStatus)
	if !errors.Is(err, ErrIO) || !errors.Is(err, errNack) {
		t.Fatalf("Read = %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Attempts != 5 || te.Op != "read" {
		t.Errorf("error = %v", err)
	}
	// no sleep after the last attempt
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	if len(rec.sleeps) != len(want) {
		t.Fatalf("slept %v, want %v", rec.sleeps, want)
	}
	for i := range want {
		if rec.sleeps[i] != want[i] {
			t.Errorf("slept %v, want %v", rec.sleeps, want)
		}
	}
}

func TestTransportWriteIO(t *testing.T) {
	chip := newFakeChip()
	chip.failWrites[RegOutputEnable] = true
	tr, rec := newTestTransport(chip, WithRetries(3))

	err := tr.Write(RegOutputEnable, 0xFE)
	if !errors.Is(err, ErrIO) || errors.Is(err, ErrVerification) {
		t.Fatalf("Write = %v", err)
	}
	if n := rec.count(EventWriteError); n != 3 {
		t.Errorf("%d write errors, want 3", n)
	}
	if n := chip.readCount(RegOutputEnable); n != 0 {
		t.Errorf("failed writes were read back %d times", n)
	}
}

func TestTransportRecovers(t *testing.T) {
	chip := newFakeChip()
	// the first read-back is garbled, the second is fine
	chip.onRead = func(reg uint8, n int) (uint8, bool) {
		if reg == RegInterruptMask && n == 0 {
			return 0xFF, true
		}
		return 0, false
	}
	tr, rec := newTestTransport(chip)

	if err := tr.Write(RegInterruptMask, 0x18); err != nil {
		t.Fatal(err)
	}
	if n := len(chip.writesTo(RegInterruptMask)); n != 2 {
		t.Errorf("%d writes, want 2", n)
	}
	if n := rec.count(EventVerifyMismatch); n != 1 {
		t.Errorf("%d mismatch events, want 1", n)
	}
}

func TestTransportAddress(t *testing.T) {
	chip := newFakeChip()
	tr, _ := newTestTransport(chip, WithAddress(0x61), WithRetries(1))
	if _, err := tr.Read(RegStatus); !errors.Is(err, ErrIO) {
		t.Errorf("Read at the wrong address = %v", err)
	}
}
