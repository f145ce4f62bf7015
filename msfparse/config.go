/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	config.go: Read the receiver hardware configuration.
*/

package msfparse

import (
	"encoding/json"
	"fmt"
	"os"
)

// Hardware describes the receiver wiring. Read once at startup.
type Hardware struct {
	// GPIO pin the demodulator output is wired to (BCM numbering).
	Pin uint
	// ActiveHigh is true when the demodulator pulls the line high while
	// the carrier is absent.
	ActiveHigh bool
	// Freq is the sample rate in Hz, an even number in [10, 120000].
	Freq uint
	// Iodev is the GPIO controller index on platforms with more than one.
	// It is read from the configuration; neither pulse source in this
	// package uses it.
	Iodev uint
}

// ReadHardware reads the JSON configuration file. All keys except iodev
// are required; a missing key or an out-of-range sample rate is a data
// error.
func ReadHardware(configName string) (Hardware, error) {
	var hw Hardware
	var raw struct {
		Pin        *uint `json:"pin"`
		ActiveHigh *bool `json:"activehigh"`
		Freq       *uint `json:"freq"`
		Iodev      *uint `json:"iodev"`
	}

	buf, err := os.ReadFile(configName)
	if err != nil {
		return hw, err
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return hw, fmt.Errorf("%s: %s", configName, err.Error())
	}
	if raw.Pin == nil {
		return hw, fmt.Errorf("key 'pin' not found")
	}
	if raw.ActiveHigh == nil {
		return hw, fmt.Errorf("key 'activehigh' not found")
	}
	if raw.Freq == nil {
		return hw, fmt.Errorf("key 'freq' not found")
	}
	hw.Pin = *raw.Pin
	hw.ActiveHigh = *raw.ActiveHigh
	hw.Freq = *raw.Freq
	if raw.Iodev != nil {
		hw.Iodev = *raw.Iodev
	}
	if hw.Freq < 10 || hw.Freq > 120000 || hw.Freq&1 == 1 {
		return hw, fmt.Errorf("freq must be an even number between 10 and 120000 inclusive")
	}
	return hw, nil
}
