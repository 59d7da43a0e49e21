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

import (
	"fmt"
	"math"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

type frequencyLiteral struct {
	Value float64 `parser:"@Number"`
	Unit  string  `parser:"@Unit?"`
}

var (
	frequencyLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]*)?|\.[0-9]+`},
		{Name: "Unit", Pattern: `(?i)[kmg]?hz|[kmg]`},
		{Name: "Whitespace", Pattern: `[ \t]+`},
	})
	frequencyParser = participle.MustBuild[frequencyLiteral](
		participle.Lexer(frequencyLexer),
		participle.Elide("Whitespace"),
	)
)

var unitScale = map[string]float64{
	"":    1,
	"hz":  1,
	"k":   1e3,
	"khz": 1e3,
	"m":   1e6,
	"mhz": 1e6,
	"g":   1e9,
	"ghz": 1e9,
}

/*
ParseFrequency reads a frequency such as "2500", "10MHz", "14.097 mhz" or
"7040k" and returns it in whole hertz, rounded to the nearest hertz. A bare
"m" means megahertz; there is no use for millihertz on a clock generator.
*/
func ParseFrequency(s string) (uint32, error) {
	lit, err := frequencyParser.ParseString("", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	scale, ok := unitScale[strings.ToLower(lit.Unit)]
	if !ok {
		return 0, fmt.Errorf("invalid frequency %q: unknown unit %q", s, lit.Unit)
	}
	hz := math.Round(lit.Value * scale)
	if hz > math.MaxUint32 {
		return 0, fmt.Errorf("invalid frequency %q: too large", s)
	}
	return uint32(hz), nil
}

// FormatFrequency renders hz with the largest unit that keeps it readable.
func FormatFrequency(hz float64) string {
	switch {
	case hz >= 1e6:
		return fmt.Sprintf("%.6f MHz", hz/1e6)
	case hz >= 1e3:
		return fmt.Sprintf("%.3f kHz", hz/1e3)
	}
	return fmt.Sprintf("%.3f Hz", hz)
}
