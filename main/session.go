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

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/platinasystems/log"

	"clockgen/src/si5351"
	"clockgen/src/support"
)

var errUsage = errors.New("usage")

// session runs shell commands against one device.
type session struct {
	dev *si5351.Device
	out io.Writer
}

const help = `Commands:
 init                 - Initialize Si5351A
 set <clk> <freq>     - Set CLK0-CLK2 to a frequency (e.g. set 0 1000000, set 1 14.097MHz)
 on <clk>             - Enable clock output (CLK0-2)
 off <clk>            - Disable clock output (CLK0-2)
 read <reg>           - Read value of a register (e.g. read 0, read 0xB7)
 status               - Show status register (0x00)
 dump                 - Decode CLK0-CLK2 registers
 plan <freq>          - Show dividers for a frequency, nothing is written
 shutdown             - Disable and power down all clocks, reset both PLLs
 exit                 - Reset Si5351A, disable all clocks, and exit CLI
`

func (s *session) exec(args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	usage := func(u string) error {
		return fmt.Errorf("%w: %s", errUsage, u)
	}
	if cmd != "help" && cmd != "?" && cmd != "plan" && s.dev == nil {
		return errors.New("no device")
	}

	switch cmd {
	case "help", "?":
		fmt.Fprint(s.out, help)

	case "init":
		if len(args) != 0 {
			return usage("init")
		}
		fmt.Fprintln(s.out, "Starting Si5351A initialization...")
		err := s.dev.Initialize()
		r := s.dev.LastInit()
		for _, m := range r.PLLA {
			fmt.Fprintf(s.out, "PLLA reg %d = 0x%02X, expected 0x%02X\n", m.Reg, m.Actual, m.Expected)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Si5351A revision %d initialized, PLLA locked after %d cycle(s), status 0x%02X\n",
			r.Revision, r.Cycles, r.Status)

	case "set":
		if len(args) != 2 {
			return usage("set <clk 0-2> <freq>")
		}
		ch, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		freq, err := support.ParseFrequency(args[1])
		if err != nil {
			return err
		}
		plan, err := s.dev.SetFrequency(ch, freq)
		if plan.R != 0 {
			s.printPlan(plan)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Register dump for verification:")
		return s.dumpChannel(ch)

	case "on", "off":
		if len(args) != 1 {
			return usage(cmd + " <clk 0-2>")
		}
		ch, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		if cmd == "on" {
			err = s.dev.Enable(ch)
		} else {
			err = s.dev.Disable(ch)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "CLK%d %s\n", ch, cmd)

	case "read":
		if len(args) != 1 {
			return usage("read <reg 0-255>")
		}
		reg, err := parseRegister(args[0])
		if err != nil {
			return err
		}
		v, err := s.dev.ReadRaw(reg)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Reg %d (0x%02X) = 0x%02X\n", reg, reg, v)

	case "status":
		v, err := s.dev.Status()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Status Reg 0 = 0x%02X (%s), device %s\n", v, describeStatus(v), s.dev.State())

	case "dump":
		fmt.Fprintf(s.out, "device %s\n", s.dev.State())
		for ch := 0; ch < si5351.Channels; ch++ {
			if err := s.dumpChannel(ch); err != nil {
				return err
			}
		}

	case "plan":
		if len(args) != 1 {
			return usage("plan <freq>")
		}
		freq, err := support.ParseFrequency(args[0])
		if err != nil {
			return err
		}
		plan, err := si5351.Plan(freq)
		if err != nil {
			return err
		}
		s.printPlan(plan)

	case "shutdown":
		fmt.Fprintln(s.out, "Resetting Si5351A and disabling all clock outputs...")
		if err := s.dev.Shutdown(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Si5351A reset and clocks disabled successfully.")

	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (s *session) printPlan(p si5351.FrequencyPlan) {
	fmt.Fprintln(s.out, p)
	fmt.Fprintf(s.out, "achieved %s, registers % X\n", support.FormatFrequency(p.Achieved()), p.Registers())
}

func (s *session) dumpChannel(ch int) error {
	st, err := s.dev.ReadChannel(ch)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, st)
	fmt.Fprintf(s.out, "  registers % X\n", st.Registers)
	return nil
}

func parseChannel(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "clk")
	ch, err := strconv.Atoi(s)
	if err != nil || ch < 0 {
		return 0, fmt.Errorf("invalid CLK number %q", s)
	}
	return ch, nil
}

func parseRegister(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("register must be between 0 and 255: %q", s)
	}
	return uint8(v), nil
}

func describeStatus(v uint8) string {
	var bits []string
	for _, b := range []struct {
		mask uint8
		name string
	}{
		{si5351.StatusSysInit, "SYS_INIT"},
		{si5351.StatusLOLB, "LOL_B"},
		{si5351.StatusLOLA, "LOL_A"},
		{si5351.StatusLOSXtal, "LOS_XTAL"},
	} {
		if v&b.mask != 0 {
			bits = append(bits, b.name)
		}
	}
	if len(bits) == 0 {
		bits = append(bits, "locked")
	}
	return fmt.Sprintf("%s, REVID %d", strings.Join(bits, " "), v&si5351.StatusRevID)
}

// explain returns a hint for the errors a user can do something about.
func explain(err error) string {
	switch {
	case errors.Is(err, si5351.ErrSysInitTimeout):
		return "SYS_INIT stuck at 1. Check power/connections."
	case errors.Is(err, si5351.ErrCrystalMismatch):
		return "Check crystal (25 MHz, 10 pF load) and connections."
	case errors.Is(err, si5351.ErrLockTimeout):
		return "Possible causes: incorrect crystal frequency (not 25 MHz), wrong load capacitance, or PLL instability."
	case errors.Is(err, si5351.ErrNotReady):
		return "Run init first."
	case errors.Is(err, si5351.ErrIO):
		return "Check I2C connection and try again."
	}
	return ""
}

// logEvent is the device observer of the program. Register writes are only
// shown with --verbose; everything else goes to the log as well.
func logEvent(e si5351.Event) {
	if verbose {
		fmt.Fprintln(os.Stderr, e)
	}
	switch e.Kind {
	case si5351.EventWrite, si5351.EventState:
		return
	case si5351.EventReadError, si5351.EventWriteError, si5351.EventVerifyMismatch,
		si5351.EventPLLAMismatch, si5351.EventResetReadback, si5351.EventLockLost:
		log.Print("warning: si5351: ", e)
	default:
		if e.Err != nil {
			log.Print("warning: si5351: ", e)
			return
		}
		log.Print("notice: si5351: ", e)
	}
}
