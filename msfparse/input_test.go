package msfparse

import (
	"testing"
)

// fakePulse replays a prerecorded sample stream and reports a hardware
// fault once it runs dry.
type fakePulse struct {
	stream []int
	pos    int
}

func (f *fakePulse) GetPulse() int {
	if f.pos >= len(f.stream) {
		return 2
	}
	p := f.stream[f.pos]
	f.pos++
	return p
}

func (f *fakePulse) Close() error {
	return nil
}

// one second of samples with the active part up front
func second(freq, active int) []int {
	s := make([]int, freq)
	for i := 0; i < active; i++ {
		s[i] = 1
	}
	return s
}

// Feed the sampler a clean synthetic trace: a begin-of-minute marker
// followed by 00, 10, 11 and 00 bits, then a second marker. The filter
// and Schmitt trigger must classify every second and the framer must
// place the bits.
func TestSamplerSymbols(t *testing.T) {
	const freq = 100
	stream := make([]int, 0, 10*freq)
	stream = append(stream, make([]int, 30)...) // tune in mid-second
	for _, active := range []int{50, 10, 20, 30, 10, 50, 10} {
		stream = append(stream, second(freq, active)...)
	}

	hw := Hardware{Pin: 4, ActiveHigh: true, Freq: freq}
	in := NewLiveInput(hw, &fakePulse{stream: stream})
	in.nodelay = true
	defer in.Cleanup()

	// The first grab only sees the tail of the tune-in second.
	gb := in.GetBit()
	if gb.Bad_io || gb.Hwstat != EHW_OK {
		t.Fatalf("warmup second not clean: %+v", gb)
	}
	in.NextBit()

	wantBits := []int{EBV_BOM, EBV_00, EBV_10, EBV_11, EBV_00, EBV_BOM}
	for i, want := range wantBits {
		gb = in.GetBit()
		if gb.Bad_io || gb.Hwstat != EHW_OK {
			t.Fatalf("second %d: hardware state not ok: %+v", i, gb)
		}
		if gb.Bitval != want {
			t.Fatalf("second %d: Bitval = %d, want %d", i, gb.Bitval, want)
		}
		if want == EBV_BOM {
			if gb.Marker != EMARK_MINUTE {
				t.Errorf("second %d: marker = %d, want EMARK_MINUTE", i, gb.Marker)
			}
			if in.Cutoff() <= 0 {
				t.Errorf("second %d: cutoff not recorded", i)
			}
		}
		in.NextBit()
	}

	buf := in.Buffer()
	for i, want := range []int{4, 0, 1, 3, 0} {
		if buf[i] != want {
			t.Errorf("buffer[%d] = %d, want %d", i, buf[i], want)
		}
	}

	bi := in.Bitinfo()
	if bi.Realfreq <= int64(freq)*500000 || bi.Realfreq > int64(freq)*1000000 {
		t.Errorf("realfreq %d left the guard band", bi.Realfreq)
	}
	if in.AccMinlen() == 0 {
		t.Error("acc_minlen did not accumulate")
	}
}

// A constantly low line never completes a second and is reported as a
// receiver or random-noise fault, and a stream fault surfaces as bad_io.
func TestSamplerHardwareStates(t *testing.T) {
	const freq = 100

	in := NewLiveInput(Hardware{Freq: freq, ActiveHigh: true},
		&fakePulse{stream: make([]int, 4*freq)})
	in.nodelay = true
	gb := in.GetBit()
	// all-low trace: the Schmitt trigger never fires
	if gb.Hwstat != EHW_RANDOM && gb.Hwstat != EHW_RECEIVE {
		t.Errorf("silent line: Hwstat = %d", gb.Hwstat)
	}
	in.Cleanup()

	in = NewLiveInput(Hardware{Freq: freq, ActiveHigh: true}, &fakePulse{})
	in.nodelay = true
	gb = in.GetBit()
	if !gb.Bad_io {
		t.Errorf("stream fault: Bad_io not set: %+v", gb)
	}
	in.Cleanup()
}

// The frequency guard resets a collapsed estimate to the nominal rate.
func TestSamplerFrequencyGuard(t *testing.T) {
	const freq = 100
	stream := make([]int, 0, 4*freq)
	for i := 0; i < 3; i++ {
		stream = append(stream, second(freq, 10)...)
	}
	in := NewLiveInput(Hardware{Freq: freq, ActiveHigh: true},
		&fakePulse{stream: stream})
	in.nodelay = true
	defer in.Cleanup()

	in.bit.Realfreq = int64(freq) * 400000 // below the guard band
	in.initBit = 0
	in.GetBit()
	bi := in.Bitinfo()
	if !bi.Freq_reset {
		t.Error("frequency reset not flagged")
	}
	if bi.Realfreq <= int64(freq)*500000 {
		t.Errorf("realfreq %d not restored", bi.Realfreq)
	}
}

func TestIsSpaceBit(t *testing.T) {
	want := map[int]bool{1: true, 9: true, 17: true, 25: true, 30: true,
		36: true, 39: true, 45: true, 52: true}
	for pos := 0; pos <= 60; pos++ {
		if IsSpaceBit(pos) != want[pos] {
			t.Errorf("IsSpaceBit(%d) = %v", pos, IsSpaceBit(pos))
		}
	}
}

// Framer invariants: bitpos stays within the buffer and a minute marker
// always restarts the count at 1.
func TestFramerBitposRange(t *testing.T) {
	in := &Input{cutoff: -1, pushback: -1}
	for i := 0; i < 130; i++ {
		in.gbRes = GBResult{Marker: EMARK_NONE, Bitval: EBV_00}
		gb := in.NextBit()
		if in.bitpos < 0 || in.bitpos > 60 {
			t.Fatalf("bitpos %d out of range", in.bitpos)
		}
		if gb.Marker == EMARK_TOOLONG && in.bitpos != 0 {
			t.Fatalf("overflow left bitpos at %d", in.bitpos)
		}
	}
	in.gbRes = GBResult{Marker: EMARK_MINUTE, Bitval: EBV_BOM}
	in.NextBit()
	if in.bitpos != 1 {
		t.Errorf("bitpos after minute marker = %d, want 1", in.bitpos)
	}
}
