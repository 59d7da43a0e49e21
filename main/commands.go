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
	"os"

	"github.com/spf13/cobra"
)

// Each subcommand runs one shell command. The device is a fresh process each
// time, so the commands that need PLLA locked bring it up first.
var subcommands = []struct {
	use, short string
	args       int
	bringUp    bool
	hardware   bool
}{
	{"shell", "Interactive Clock Gen Click shell", 0, false, true},
	{"init", "Bring the device up with PLLA locked and every output off", 0, false, true},
	{"set <clk> <freq>", "Bring up, then set CLK0..CLK2 to a frequency (e.g. set 0 10MHz)", 2, true, true},
	{"on <clk>", "Bring up, then enable one output", 1, true, true},
	{"off <clk>", "Bring up, then disable one output", 1, true, true},
	{"read <reg>", "Read one register (decimal or 0x hex)", 1, false, true},
	{"status", "Show the status register", 0, false, true},
	{"dump", "Decode the registers of every output", 0, false, true},
	{"plan <freq>", "Show the dividers for a frequency without touching hardware", 1, false, false},
	{"shutdown", "Disable and power down every output and reset both PLLs", 0, false, true},
}

func init() {
	for _, sc := range subcommands {
		sc := sc
		cmd := &cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.ExactArgs(sc.args),
		}
		name := cmd.Name()
		if name == "shell" {
			cmd.RunE = runShell
			rootCmd.AddCommand(cmd)
			continue
		}
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			s := &session{out: os.Stdout}
			if sc.hardware {
				dev, err := openDevice()
				if err != nil {
					return err
				}
				s.dev = dev
			}
			if sc.bringUp {
				if err := s.exec([]string{"init"}); err != nil {
					return err
				}
			}
			return s.exec(append([]string{name}, args...))
		}
		rootCmd.AddCommand(cmd)
	}
}
