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

package support

import "testing"

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"2500", 2500},
		{"1000000", 1_000_000},
		{"10MHz", 10_000_000},
		{"14.097 mhz", 14_097_000},
		{"7040k", 7_040_000},
		{"7040 kHz", 7_040_000},
		{"200M", 200_000_000},
		{" 1.5 khz ", 1500},
		{"28.1261M", 28_126_100},
		{".5k", 500},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if err != nil {
				t.Fatalf("ParseFrequency(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFrequencyErrors(t *testing.T) {
	for _, in := range []string{"", "MHz", "ten", "10 MHz extra", "-5", "10 THz", "9G"} {
		if f, err := ParseFrequency(in); err == nil {
			t.Errorf("ParseFrequency(%q) = %d, expected an error", in, f)
		}
	}
}

func TestFormatFrequency(t *testing.T) {
	tests := []struct {
		hz   float64
		want string
	}{
		{10e6, "10.000000 MHz"},
		{2500, "2.500 kHz"},
		{12.5, "12.500 Hz"},
	}
	for _, tt := range tests {
		if got := FormatFrequency(tt.hz); got != tt.want {
			t.Errorf("FormatFrequency(%g) = %q, want %q", tt.hz, got, tt.want)
		}
	}
}
