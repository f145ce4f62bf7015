/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	gpio.go: Pulse sources. One signal sample per call, either through the
	memory-mapped GPIO registers (go-rpio) or through the sysfs interface
	(embd). The decoding core never branches on the backend.
*/

package msfparse

import (
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
	"github.com/stianeikeland/go-rpio/v4"
)

// A PulseSource yields one signal sample per call: 0, 1 or 2 for a
// hardware read fault. The call must not block longer than one sampling
// interval.
type PulseSource interface {
	GetPulse() int
	Close() error
}

// RpioPulse reads the receiver pin through /dev/gpiomem.
type RpioPulse struct {
	pin        rpio.Pin
	activeHigh bool
}

func OpenRpioPulse(hw Hardware) (*RpioPulse, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	pin := rpio.Pin(hw.Pin)
	pin.Input()
	return &RpioPulse{pin: pin, activeHigh: hw.ActiveHigh}, nil
}

func (s *RpioPulse) GetPulse() int {
	v := int(s.pin.Read())
	if !s.activeHigh {
		v = 1 - v
	}
	return v
}

func (s *RpioPulse) Close() error {
	return rpio.Close()
}

// SysfsPulse reads the receiver pin through /sys/class/gpio. Slower than
// RpioPulse but works on boards without /dev/gpiomem access.
type SysfsPulse struct {
	pin        embd.DigitalPin
	activeHigh bool
}

func OpenSysfsPulse(hw Hardware) (*SysfsPulse, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, err
	}
	pin, err := embd.NewDigitalPin(int(hw.Pin))
	if err != nil {
		embd.CloseGPIO()
		return nil, err
	}
	if err := pin.SetDirection(embd.In); err != nil {
		pin.Close()
		embd.CloseGPIO()
		return nil, err
	}
	return &SysfsPulse{pin: pin, activeHigh: hw.ActiveHigh}, nil
}

func (s *SysfsPulse) GetPulse() int {
	v, err := s.pin.Read()
	if err != nil {
		return 2 /* hardware failure? */
	}
	if !s.activeHigh {
		v = 1 - v
	}
	return v
}

func (s *SysfsPulse) Close() error {
	err := s.pin.Close()
	embd.CloseGPIO()
	return err
}
