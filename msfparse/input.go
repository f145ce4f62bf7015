/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	input.go: Convert the raw GPIO trace into per-second bit symbols using
	an exponential low-pass filter and a Schmitt trigger with
	self-calibrating period length, and frame the symbols into minutes.

	The filter/trigger idea and its initial implementation come from Udo
	Klein, with permission.
	http://blog.blinkenlight.net/experiments/dcf77/binary-clock/#comment-5916
*/

package msfparse

import (
	"bufio"
	"log"
	"math"
	"os"
	"time"
)

// BUFLEN is the maximum number of bits in a minute.
const BUFLEN = 61

// Minute marker state.
const (
	EMARK_NONE = iota
	EMARK_MINUTE
	EMARK_TOOLONG
	EMARK_LATE
)

// Bit values. Each second carries two data bits; bit 0 of a minute is the
// 500 ms begin-of-minute marker.
const (
	EBV_00 = iota
	EBV_10
	EBV_11
	EBV_01
	EBV_BOM
	EBV_NONE
)

// Hardware state.
const (
	EHW_OK = iota
	EHW_RECEIVE
	EHW_TRANSMIT
	EHW_RANDOM
)

// GBResult is the outcome of grabbing one bit.
type GBResult struct {
	Marker int
	Bitval int
	Hwstat int
	Bad_io bool
	Skip   bool
	Done   bool
}

// BitInfo is the running filter state of the sampler. All frequency and
// length values are fixed point with a 10^6 scale to avoid floats.
type BitInfo struct {
	// Estimated number of samples per second, scaled by 10^6.
	Realfreq int64
	// Estimated begin-of-minute active length in samples, scaled by 10^6.
	Bit0 int64
	// Estimated 100 ms active length in samples, scaled by 10^6.
	Bit59 int64
	// Sample counter within the current second.
	T uint
	// Sample index of the falling edge (end of the active part).
	Tlow int
	// Last sample at which the filtered value was near zero.
	Tlast0 int
	// Packed per-sample snapshot of the current second, one bit per
	// sample. Diagnostics only.
	Signal []byte

	Freq_reset   bool
	Bitlen_reset bool
}

// Input owns the bit buffer, the sampler state and the log file handle for
// one receiver session, in either live or playback mode.
type Input struct {
	hw  Hardware
	src PulseSource

	bit     BitInfo
	buffer  [BUFLEN]int
	bitpos  int
	decBp   uint
	gbRes   GBResult
	initBit int

	accMinlen uint
	cutoff    int

	// Filter constant, reaches 50% step response after freq/20 samples.
	filterA int64
	// Nanoseconds per sample divided by the nominal frequency, the
	// fixed factor of the residual sleep below.
	sec2 uint

	outch byte

	logfile   *os.File
	flushQuit chan struct{}
	flushDone chan struct{}

	infile        *os.File
	inrd          *bufio.Reader
	pushback      int
	ineof         bool
	readAccMinlen bool

	filemode int // 0 = none, 1 = live, 2 = playback

	nodelay bool // tests only
}

// NewLiveInput prepares sampling from a live pulse source.
func NewLiveInput(hw Hardware, src PulseSource) *Input {
	in := &Input{
		hw:       hw,
		src:      src,
		initBit:  2,
		cutoff:   -1,
		pushback: -1,
		filemode: 1,
	}
	in.bit.Signal = make([]byte, hw.Freq/2)
	/* Set up filter, reach 50% after freq/20 samples (i.e. 50 ms) */
	in.filterA = 1000000000 -
		int64(1000000000*math.Exp2(-20.0/float64(hw.Freq)))
	in.sec2 = 1000000000 / (hw.Freq * hw.Freq)
	return in
}

// NewFileInput prepares playback from a previously recorded log file.
func NewFileInput(infilename string) (*Input, error) {
	f, err := os.Open(infilename)
	if err != nil {
		return nil, err
	}
	return &Input{
		infile:   f,
		inrd:     bufio.NewReader(f),
		cutoff:   -1,
		pushback: -1,
		filemode: 2,
	}, nil
}

// Cleanup releases the pulse source, the playback file and the log file.
// The log flusher is joined before the log handle is closed.
func (in *Input) Cleanup() {
	if in.src != nil {
		if err := in.src.Close(); err != nil {
			log.Printf("pulse source close: %s\n", err.Error())
		}
		in.src = nil
	}
	if in.infile != nil {
		in.infile.Close()
		in.infile = nil
	}
	in.CloseLogfile()
	in.bit.Signal = nil
}

/*
 * Clear the cutoff value and the state values, except emark_toolong and
 * emark_late to be able to determine if this flag can be cleared again.
 */
func (in *Input) setNewState() {
	if !in.gbRes.Skip {
		in.cutoff = -1
	}
	in.gbRes.Bad_io = false
	in.gbRes.Bitval = EBV_NONE
	if in.gbRes.Marker != EMARK_TOOLONG && in.gbRes.Marker != EMARK_LATE {
		in.gbRes.Marker = EMARK_NONE
	}
	in.gbRes.Hwstat = EHW_OK
	in.gbRes.Done = false
	in.gbRes.Skip = false
}

func (in *Input) resetFrequency() {
	if in.logfile != nil {
		if in.bit.Realfreq <= int64(in.hw.Freq)*500000 {
			in.logWrite('<')
		} else if in.bit.Realfreq > int64(in.hw.Freq)*1000000 {
			in.logWrite('>')
		}
	}
	in.bit.Realfreq = int64(in.hw.Freq) * 1000000
	in.bit.Freq_reset = true
}

func (in *Input) resetBitlen() {
	in.logWrite('!')
	in.bit.Bit0 = in.bit.Realfreq / 2
	in.bit.Bit59 = in.bit.Realfreq / 10
	in.bit.Bitlen_reset = true
}

// collectPulses runs the low-pass filter and Schmitt trigger over the
// incoming samples until the rising edge that starts the next second, a
// timeout or a hardware fault. It returns the sample counter.
func (in *Input) collectPulses(start uint, adjFreq *bool) uint {
	var y int64 = 1000000000
	stv := 1

	for in.bit.T = start; in.bit.T < in.hw.Freq; in.bit.T++ {
		tp0 := time.Now()
		p := in.src.GetPulse()
		if p == 2 {
			in.gbRes.Bad_io = true
			in.outch = '*'
			break
		}
		if in.bit.Signal != nil {
			/* clear data from previous second */
			if in.bit.T&7 == 0 {
				in.bit.Signal[in.bit.T/8] = 0
			}
			in.bit.Signal[in.bit.T/8] |= byte(p) << (in.bit.T & 7)
		}

		if y >= 0 && y < in.filterA/2 {
			in.bit.Tlast0 = int(in.bit.T)
		}
		y += in.filterA * (int64(p)*1000000000 - y) / 1000000000

		/*
		 * Prevent algorithm collapse during thunderstorms or
		 * scheduler abuse
		 */
		if in.bit.Realfreq <= int64(in.hw.Freq)*500000 ||
			in.bit.Realfreq > int64(in.hw.Freq)*1000000 {
			in.resetFrequency()
			*adjFreq = false
		}

		if int64(in.bit.T)*1000000 > in.bit.Realfreq*3/2 {
			if in.bit.Tlow <= int(in.hw.Freq)/20 {
				in.gbRes.Hwstat = EHW_RECEIVE
				in.outch = 'r'
			} else if in.bit.Tlow*100/int(in.bit.T) >= 99 {
				in.gbRes.Hwstat = EHW_TRANSMIT
				in.outch = 'x'
			} else {
				in.gbRes.Hwstat = EHW_RANDOM
				in.outch = '#'
			}
			*adjFreq = false
			break /* timeout */
		}

		/*
		 * Schmitt trigger, maximize value to introduce hysteresis and
		 * to avoid infinite memory.
		 */
		if y < 500000000 && stv == 1 {
			/* end of high part of second */
			y = 0
			stv = 0
			in.bit.Tlow = int(in.bit.T)
		}
		if y > 500000000 && stv == 0 {
			/* end of low part of second */
			if in.initBit == 2 {
				in.initBit = 1
			}
			break /* start of new second */
		}

		twait := int64(in.sec2) * in.bit.Realfreq / 1000000
		twait -= time.Since(tp0).Nanoseconds()
		if twait > 0 && !in.nodelay {
			time.Sleep(time.Duration(twait))
		}
	}
	if in.bit.T >= in.hw.Freq {
		/* this can actually happen */
		if in.gbRes.Hwstat == EHW_OK {
			in.gbRes.Hwstat = EHW_RANDOM
			in.outch = '#'
		}
		in.resetFrequency()
		*adjFreq = false
	}
	return in.bit.T
}

/*
 * One period is 1000 ms long. The active part can be 100 ms ('00'),
 * 200 ms ('10'), 300 ms ('11') or 100+100 ms ('01') long. Bit 0 is
 * special and 500 ms long to indicate the start of a new minute.
 */
func (in *Input) getBitLive() GBResult {
	in.outch = '?'
	adjFreq := true

	in.bit.Freq_reset = false
	in.bit.Bitlen_reset = false

	in.setNewState()

	if in.initBit == 2 {
		in.bit.Realfreq = int64(in.hw.Freq) * 1000000
		in.bit.Bit0 = in.bit.Realfreq / 2
		in.bit.Bit59 = in.bit.Realfreq / 10
	}
	len100ms := in.bit.Bit0/10 + in.bit.Bit59/2

	in.bit.Tlow = -1
	in.bit.Tlast0 = -1

	in.bit.T = in.collectPulses(0, &adjFreq)
	if !in.gbRes.Bad_io && in.gbRes.Hwstat == EHW_OK {
		t := int64(in.bit.T)
		tlow := int64(in.bit.Tlow)
		if 2*tlow*in.bit.Realfreq < 3*len100ms*t {
			/* two zero bits, ~100 ms active signal */
			in.gbRes.Bitval = EBV_00
			in.outch = '0'
			in.buffer[in.bitpos] = 0
		} else if 2*tlow*in.bit.Realfreq < 5*len100ms*t {
			/* one bit and zero bit, ~200 ms active signal */
			in.gbRes.Bitval = EBV_10
			in.outch = '1'
			in.buffer[in.bitpos] = 1
		} else if 2*tlow*in.bit.Realfreq < 7*len100ms*t {
			/* mitigate against 2 bits becoming a 30 combination if the radio signal is noisy */
			if t*2500000 >= in.bit.Realfreq {
				/* two one bits, ~300 ms active signal */
				in.gbRes.Bitval = EBV_11
				in.outch = '3'
				in.buffer[in.bitpos] = 3
			} else {
				/* zero bit and one bit, split signal */
				in.gbRes.Bitval = EBV_01
				in.outch = '2'
				in.buffer[in.bitpos] = 2
				/* read the rest of the second */
				in.bit.T = in.collectPulses(in.bit.T, &adjFreq)
			}
		} else if tlow*in.bit.Realfreq < 6*len100ms*t {
			if t*2500000 >= in.bit.Realfreq {
				/* begin-of-minute, ~500 ms active signal */
				in.gbRes.Marker = EMARK_MINUTE
				in.gbRes.Bitval = EBV_BOM
				in.outch = '4'
				in.bitpos = 0
				in.buffer[in.bitpos] = 4
			} else {
				/* zero bit and one bit, split signal */
				in.gbRes.Bitval = EBV_01
				in.outch = '2'
				in.buffer[in.bitpos] = 2
				/* read the rest of the second */
				in.bit.T = in.collectPulses(in.bit.T, &adjFreq)
			}
		} else {
			/* bad radio signal, retain old value */
			in.gbRes.Bitval = EBV_NONE
			in.outch = '_'
			adjFreq = false
		}
	}

	if !in.gbRes.Bad_io {
		if in.initBit == 1 {
			in.initBit--
		} else if in.gbRes.Hwstat == EHW_OK &&
			(in.gbRes.Marker == EMARK_NONE ||
				in.gbRes.Marker == EMARK_MINUTE) {
			if in.bitpos == 59 && in.gbRes.Bitval == EBV_00 {
				in.bit.Bit59 +=
					(int64(in.bit.Tlow)*1000000 - in.bit.Bit59) / 2
			}
			if in.gbRes.Bitval == EBV_BOM {
				in.bit.Bit0 +=
					(int64(in.bit.Tlow)*1000000 - in.bit.Bit0) / 2
			}
			/* Force sane values during e.g. a thunderstorm */
			avg := (in.bit.Bit0 - in.bit.Bit59) / 2
			if 4*in.bit.Bit0 < 15*in.bit.Bit59 ||
				2*in.bit.Bit0 > 15*in.bit.Bit59 {
				in.resetBitlen()
				adjFreq = false
			}
			if in.bit.Bit0+avg < in.bit.Realfreq/2 ||
				in.bit.Bit0-avg > in.bit.Realfreq/2 {
				in.resetBitlen()
				adjFreq = false
			}
			if in.bit.Bit59+avg < in.bit.Realfreq/10 {
				in.resetBitlen()
				adjFreq = false
			}
		}
	}
	if adjFreq {
		in.bit.Realfreq +=
			(int64(in.bit.T)*1000000 - in.bit.Realfreq) / 20
	}
	in.accMinlen += uint(1000000 * int64(in.bit.T) / (in.bit.Realfreq / 1000))
	if in.logfile != nil {
		in.logWrite(in.outch)
		if in.gbRes.Marker == EMARK_MINUTE ||
			in.gbRes.Marker == EMARK_LATE {
			in.logWriteAccMinlen(in.accMinlen)
		}
	}
	if in.gbRes.Marker == EMARK_MINUTE || in.gbRes.Marker == EMARK_LATE {
		in.cutoff = int(int64(in.bit.T) * 1000000 / (in.bit.Realfreq / 10000))
	}
	return in.gbRes
}

// GetBit grabs the next bit from the live source or the playback file.
func (in *Input) GetBit() GBResult {
	if in.filemode == 2 {
		return in.getBitFile()
	}
	return in.getBitLive()
}

// IsSpaceBit reports whether a space should be printed before this bit
// position. Formatting only, the positions mirror the field boundaries.
func IsSpaceBit(bitpos int) bool {
	return bitpos == 1 || bitpos == 9 || bitpos == 17 ||
		bitpos == 25 || bitpos == 30 || bitpos == 36 || bitpos == 39 ||
		bitpos == 45 || bitpos == 52
}

// NextBit advances the bit position within the minute, handling minute
// markers, buffer overflow and the playback look-ahead roll-back.
func (in *Input) NextBit() GBResult {
	if in.decBp == 1 {
		in.bitpos--
		in.decBp = 2
	}
	if in.gbRes.Marker == EMARK_MINUTE || in.gbRes.Marker == EMARK_LATE {
		in.bitpos = 1
		in.decBp = 0
	} else if !in.gbRes.Skip {
		in.bitpos++
	}
	if in.bitpos == BUFLEN {
		in.gbRes.Marker = EMARK_TOOLONG
		in.bitpos = 0
		return in.gbRes
	}
	if in.gbRes.Marker == EMARK_TOOLONG {
		in.gbRes.Marker = EMARK_NONE /* fits again */
	} else if in.gbRes.Marker == EMARK_LATE {
		in.gbRes.Marker = EMARK_MINUTE
	}
	return in.gbRes
}

// Bitpos returns the current position within the minute.
func (in *Input) Bitpos() int {
	return in.bitpos
}

// Buffer returns the bit buffer. The buffer is overwritten in place and
// reset only by the minute marker.
func (in *Input) Buffer() []int {
	return in.buffer[:]
}

// Bitinfo returns a copy of the running filter state.
func (in *Input) Bitinfo() BitInfo {
	return in.bit
}

// HardwareParameters returns the hardware configuration of a live session.
func (in *Input) HardwareParameters() Hardware {
	return in.hw
}

// AccMinlen returns the accumulated length of the current minute in
// milliseconds.
func (in *Input) AccMinlen() uint {
	return in.accMinlen
}

func (in *Input) ResetAccMinlen() {
	in.accMinlen = 0
}

// Cutoff returns the second-length ratio recorded at the last minute
// boundary, scaled by 10^4, or -1 if none was recorded yet.
func (in *Input) Cutoff() int {
	return in.cutoff
}
