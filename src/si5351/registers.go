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

// Register addresses (AN619).
const (
	RegStatus        = 0x00
	RegInterrupt     = 0x01 // sticky flags, cleared by writing
	RegInterruptMask = 0x02
	RegOutputEnable  = 0x03 // one bit per CLK0..CLK7, 0 = enabled
	RegPLLSource     = 0x0F
	RegClk0Control   = 16
	RegClk3Control   = 19
	RegClk7Control   = 23
	RegMSNA          = 26 // 26..33
	RegMS0           = 42 // 42+8n .. 49+8n
	RegSpreadSpec    = 149
	RegPLLReset      = 0xB1
	RegCrystalLoad   = 0xB7
	RegFanout        = 0xBB
)

// Status register bits.
const (
	StatusSysInit = 0x80
	StatusLOLB    = 0x40
	StatusLOLA    = 0x20
	StatusLOSXtal = 0x10
	StatusRevID   = 0x03
)

// PLL reset bits (register 177).
const (
	PLLAReset = 0x20
	PLLBReset = 0x80
)

// Clock control register bits (registers 16..23).
const (
	clkPowerDown   = 0x80
	clkIntegerMode = 0x40
	clkSourcePLLB  = 0x20
	clkInvert      = 0x10
	clkSourceMS    = 0x03 << 2
	clkDrive8mA    = 0x03
)

const (
	// Channels is the number of outputs this package drives.
	Channels = 3

	// CrystalLoad10pF is the load capacitance code for a 25 MHz, 10 pF crystal.
	CrystalLoad10pF = 0xD2
)

// safeDefaults are written during bring-up after the outputs are disabled:
// interrupt masks, sticky flags, spread spectrum off, CLK3..CLK7 powered down,
// crystal as PLL source and crystal fanout on.
var safeDefaults = []struct{ reg, value uint8 }{
	{RegInterruptMask, 0x18},
	{RegInterrupt, 0x00},
	{RegSpreadSpec, 0x00},
	{RegClk3Control, 0x80},
	{20, 0x80},
	{21, 0x80},
	{22, 0xC0},
	{RegClk7Control, 0x80},
	{RegPLLSource, 0x00},
	{RegFanout, 0x50},
}

// defaultSelfClearing lists registers that the device modifies on its own right
// after a write, so a read-back can never be compared against what was written.
var defaultSelfClearing = []uint8{RegInterrupt, RegPLLReset, RegFanout}

func multisynthBase(channel int) uint8 {
	return uint8(RegMS0 + 8*channel)
}

func controlRegister(channel int) uint8 {
	return uint8(RegClk0Control + channel)
}

// packMultisynth lays out divider fields the way the eight Multisynth
// registers hold them, lowest address first.
func packMultisynth(p1, p2, p3 uint32, rDiv, divBy4 uint8) [8]uint8 {
	return [8]uint8{
		uint8(p3 >> 8),
		uint8(p3),
		(rDiv&0x07)<<4 | (divBy4&0x03)<<2 | uint8(p1>>16)&0x03,
		uint8(p1 >> 8),
		uint8(p1),
		(uint8(p3>>16)&0x0F)<<4 | uint8(p2>>16)&0x0F,
		uint8(p2 >> 8),
		uint8(p2),
	}
}

// unpackMultisynth is the inverse of packMultisynth.
func unpackMultisynth(regs [8]uint8) (p1, p2, p3 uint32, rDiv, divBy4 uint8) {
	p3 = uint32(regs[5]>>4)<<16 | uint32(regs[0])<<8 | uint32(regs[1])
	p1 = uint32(regs[2]&0x03)<<16 | uint32(regs[3])<<8 | uint32(regs[4])
	p2 = uint32(regs[5]&0x0F)<<16 | uint32(regs[6])<<8 | uint32(regs[7])
	rDiv = (regs[2] >> 4) & 0x07
	divBy4 = (regs[2] >> 2) & 0x03
	return
}
