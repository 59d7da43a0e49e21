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

const (
	CrystalFreq    = 25_000_000
	PLLAMultiplier = 32
	VCOFreq        = CrystalFreq * PLLAMultiplier // fixed at bring-up

	MinFreq = 2_500
	MaxFreq = 200_000_000

	rDividerBelow  = 500_000     // R divider searched below this
	divBy4Above    = 150_000_000 // Multisynth divide-by-4 mode above this
	fractionDenom  = 1_048_575   // 2^20 - 1
	minMultisynth  = 8
	maxMultisynth  = 2048
	maxRDivLog2    = 7
	divBy4Encoding = 0x03
)

// FrequencyPlan holds the divider settings for one output. Divider is
// A + B/C, the output is VCOFreq / (R * Divider).
type FrequencyPlan struct {
	Freq        uint32 // requested frequency (Hz)
	R           uint32 // 1, 2, 4 .. 128
	RDiv        uint8  // log2(R)
	A, B, C     uint32 // Multisynth divider a + b/c
	P1, P2, P3  uint32 // register encoding of a, b, c
	DivBy4      uint8  // 0b11 when the Multisynth runs in divide-by-4 mode
	IntegerMode bool
}

/*
Plan computes the output divider settings that produce `freq` (in Hz) from the
800 MHz PLLA.

Frequencies at or above 500 kHz are divided by the Multisynth alone. Below
that, the smallest power-of-two R divider that keeps the Multisynth ratio in
8..2048 is used. Above 150 MHz the Multisynth is put in its divide-by-4 mode
so the output is exactly 200 MHz.

The Multisynth ratio is split as a + b/c with c fixed at 2^20-1 and b rounded
down, all in integer arithmetic, so the same frequency always gives the same
plan.

An error is returned if `freq` is outside 2.5 kHz..200 MHz or if no R divider
keeps the Multisynth in range (everything below about 3052 Hz).
*/
func Plan(freq uint32) (FrequencyPlan, error) {
	if freq < MinFreq || freq > MaxFreq {
		return FrequencyPlan{}, &PlanError{Kind: ErrOutOfRange, Freq: freq}
	}

	p := FrequencyPlan{Freq: freq, R: 1}
	if freq < rDividerBelow {
		found := false
		for rDiv := uint8(0); rDiv <= maxRDivLog2; rDiv++ {
			d := uint64(freq) << rDiv
			if minMultisynth*d <= VCOFreq && VCOFreq <= maxMultisynth*d {
				p.R, p.RDiv, found = 1<<rDiv, rDiv, true
				break
			}
		}
		if !found {
			return FrequencyPlan{}, &PlanError{Kind: ErrNoValidDivider, Freq: freq}
		}
	}

	if freq > divBy4Above {
		p.A, p.B, p.C = 4, 0, 1
		p.P1, p.P2, p.P3 = 0, 0, 1
		p.DivBy4 = divBy4Encoding
		p.IntegerMode = true
		return p, nil
	}

	d := uint64(freq) * uint64(p.R)
	a := VCOFreq / d
	b := (VCOFreq % d) * fractionDenom / d
	c := uint64(fractionDenom)
	if b == 0 {
		c = 1
	}
	f := 128 * b / c

	p.A, p.B, p.C = uint32(a), uint32(b), uint32(c)
	p.P1 = uint32(128*a + f - 512)
	p.P2 = uint32(128*b - c*f)
	p.P3 = uint32(c)
	p.IntegerMode = b == 0 && a%2 == 0
	return p, nil
}

// Divider returns a + b/c.
func (p FrequencyPlan) Divider() float64 {
	return float64(p.A) + float64(p.B)/float64(p.C)
}

// Achieved returns the frequency the plan actually produces (Hz).
func (p FrequencyPlan) Achieved() float64 {
	if p.R == 0 || p.C == 0 {
		return 0
	}
	// VCO * c / (r * (a*c + b)) keeps the division to the end
	num := float64(VCOFreq) * float64(p.C)
	den := float64(p.R) * (float64(p.A)*float64(p.C) + float64(p.B))
	return num / den
}

// Registers returns the eight Multisynth register values for the plan.
func (p FrequencyPlan) Registers() [8]uint8 {
	return packMultisynth(p.P1, p.P2, p.P3, p.RDiv, p.DivBy4)
}

// control returns the clock control register value: PLLA source, Multisynth
// output, not inverted, 8 mA drive, powered up.
func (p FrequencyPlan) control() uint8 {
	v := uint8(clkSourceMS | clkDrive8mA)
	if p.IntegerMode {
		v |= clkIntegerMode
	}
	return v
}

func (p FrequencyPlan) String() string {
	return fmt.Sprintf("%d Hz: ms_div=%.6f, R=%d, P1=%d, P2=%d, P3=%d, r_div=%d, divby4=%d, int=%v",
		p.Freq, p.Divider(), p.R, p.P1, p.P2, p.P3, p.RDiv, p.DivBy4, p.IntegerMode)
}
