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

package bus

import (
	"errors"
	"fmt"

	tinysi5351 "github.com/chiefMarlin/tinygo-drivers/si5351"
	"tinygo.org/x/drivers"
)

// Probe checks that something answers at the default Si5351 address on bus
// before any register is touched.
func Probe(bus drivers.I2C) error {
	clockgen := tinysi5351.New(bus)

	connected, err := clockgen.Connected()
	if err != nil {
		return fmt.Errorf("unable to read device status: %w", err)
	}
	if !connected {
		return errors.New("no clock generator answering on the bus")
	}
	return nil
}
