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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/mattn/go-isatty"
	"github.com/platinasystems/liner"
	"github.com/spf13/cobra"
)

// prompter reads one line of input.
type prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linePrompter is liner with history, for terminals.
type linePrompter struct {
	s *liner.State
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	line, err := p.s.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		p.s.AppendHistory(line)
	}
	return line, err
}

func (p *linePrompter) Close() error {
	return p.s.Close()
}

// scriptPrompter reads piped input. The prompt is only echoed when w is set.
type scriptPrompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

func (p *scriptPrompter) Prompt(prompt string) (string, error) {
	if p.w != nil {
		fmt.Fprint(p.w, prompt)
	}
	if p.scanner.Scan() {
		return p.scanner.Text(), nil
	}
	err := p.scanner.Err()
	if err == nil {
		err = io.EOF
	}
	return "", err
}

func (p *scriptPrompter) Close() error { return nil }

func newPrompter() prompter {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		s := liner.NewLiner()
		s.SetCtrlCAborts(true)
		return &linePrompter{s: s}
	}
	return &scriptPrompter{scanner: bufio.NewScanner(os.Stdin)}
}

func runShell(cmd *cobra.Command, args []string) error {
	dev, err := openDevice()
	if err != nil {
		return err
	}
	s := &session{dev: dev, out: os.Stdout}
	p := newPrompter()
	defer p.Close()

	fmt.Fprintln(s.out, "\n=== Clock Gen Click CLI ===")
	fmt.Fprint(s.out, help+"\n")
	return shell(s, p)
}

// shell runs commands until exit or end of input, then shuts the device down.
func shell(s *session, p prompter) error {
	for {
		line, err := p.Prompt(">> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			break
		}
		if err != nil {
			return err
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if cmd := strings.ToLower(args[0]); cmd == "exit" || cmd == "quit" {
			break
		}
		if err := s.exec(args); err != nil {
			fmt.Fprintln(s.out, "error:", err)
			if hint := explain(err); hint != "" {
				fmt.Fprintln(s.out, hint)
			}
		}
	}

	fmt.Fprintln(s.out, "Exiting CLI and resetting Si5351A...")
	if s.dev == nil {
		return nil
	}
	if err := s.dev.Shutdown(); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Program terminated.")
	return nil
}
