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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clockgen/src/bus"
	"clockgen/src/si5351"
)

var (
	busNumber   int
	address     uint16
	retries     int
	multipliers []string
	verbose     bool
	noProbe     bool
)

var rootCmd = &cobra.Command{
	Use:   "clockgen",
	Short: "Si5351A clock generator control",
	Long: `Bring up a Si5351A on a Linux I2C bus and drive its CLK0..CLK2 outputs.

Without a subcommand an interactive shell is started.

Examples:
  clockgen --bus 1 set 0 10MHz        # bring up, then 10 MHz on CLK0
  clockgen plan 7.04MHz               # show dividers, no hardware needed
  clockgen --multiplier 0=4 shell     # CLK0 feeds a divide-by-4 stage`,
	SilenceUsage: true,
	RunE:         runShell,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&busNumber, "bus", 1, "i2c bus number (/dev/i2c-N)")
	flags.Uint16Var(&address, "addr", si5351.DefaultAddress, "device address")
	flags.IntVar(&retries, "retries", 5, "attempts per register transaction")
	flags.StringArrayVar(&multipliers, "multiplier", nil, "output multiplier as clk=factor, repeatable")
	flags.BoolVarP(&verbose, "verbose", "v", false, "echo every device event on stderr")
	flags.BoolVar(&noProbe, "no-probe", false, "skip the presence check")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := explain(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

// openDevice builds the device described by the global flags. Nothing is
// written to it.
func openDevice() (*si5351.Device, error) {
	adapter := bus.NewSMBus(busNumber)
	if !noProbe && address == si5351.DefaultAddress {
		if err := bus.Probe(adapter); err != nil {
			return nil, fmt.Errorf("%s: %w", adapter, err)
		}
	}

	opts := []si5351.Option{
		si5351.WithAddress(address),
		si5351.WithRetries(retries),
		si5351.WithObserver(logEvent),
	}
	for _, m := range multipliers {
		ch, factor, err := parseMultiplier(m)
		if err != nil {
			return nil, err
		}
		opts = append(opts, si5351.WithOutputMultiplier(ch, factor))
	}
	return si5351.New(adapter, opts...), nil
}

// parseMultiplier reads "clk=factor", where clk may be written 0 or clk0.
func parseMultiplier(s string) (int, uint32, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, fmt.Errorf("multiplier %q: want clk=factor", s)
	}
	ch, err := parseChannel(k)
	if err != nil {
		return 0, 0, err
	}
	if ch >= si5351.Channels {
		return 0, 0, fmt.Errorf("multiplier %q: no CLK%d", s, ch)
	}
	factor, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil || factor == 0 {
		return 0, 0, fmt.Errorf("multiplier %q: factor must be a positive integer", s)
	}
	return ch, uint32(factor), nil
}
