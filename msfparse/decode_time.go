/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	decode_time.go: Decode the MSF data fields of a completed minute into
	civil time, tracking parity, BCD, jump, DST and leap second state.
*/

package msfparse

// Minute length state.
const (
	EMIN_OK = iota
	EMIN_SHORT
	EMIN_LONG
)

// State of a decoded date/time value.
const (
	EVAL_OK = iota
	EVAL_BCD
	EVAL_PARITY
	EVAL_JUMP
)

// Daylight saving time state.
const (
	EDST_OK = iota
	EDST_JUMP
	EDST_DONE
)

// Leap second state.
const (
	ELS_NONE = iota
	ELS_ONE
	ELS_DONE
)

// DTResult contains the state of all decoded information of one minute.
type DTResult struct {
	// Bit 0 must always be 500 ms long.
	Bit0_ok bool
	// Bits 52 and 59 must always be 100 ms long.
	Bit52_ok bool
	Bit59_ok bool

	Minute_length int

	Minute_status int
	Hour_status   int
	Mday_status   int
	Wday_status   int
	Month_status  int
	Year_status   int

	Dst_status        int
	Leapsecond_status int
	Dst_announce      bool
	Leap_announce     bool
}

// Decoder holds the running state of the minute decoder. One Decoder is
// owned by the main loop for the lifetime of the process.
type Decoder struct {
	dstCount    int
	leapCount   int
	minuteCount int
	olderr      bool
	synced      bool

	accMinlenPartial uint

	res DTResult
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// getpar checks the parity of the A bits in buffer[start..stop]
// against the B bit at the parity position. The total number of set bits
// is odd for a correct transmission.
func getpar(buffer []int, start, stop, parity uint) bool {
	par := 0
	for i := start; i <= stop; i++ {
		par += buffer[i] & 1 /* A bits */
	}
	par += buffer[parity] >> 1 /* parity is B bit */
	return par&1 == 1
}

// getbcd decodes the A bits of buffer[start..stop] as BCD, most
// significant bit first. A nibble greater than 9 yields 100.
func getbcd(buffer []int, start, stop uint) int {
	mul := 1
	val := 0
	for i := stop; i >= start; i-- {
		val += mul * (buffer[i] & 1) /* A bits only */
		mul *= 2
		if mul == 16 {
			if val > 9 {
				return 100
			}
			mul = 10
		}
	}
	return val
}

func (d *Decoder) checkTimeSanity(minlen int, buffer []int) bool {
	if minlen == -1 || minlen > 61 {
		d.res.Minute_length = EMIN_LONG
	} else if minlen < 59 {
		d.res.Minute_length = EMIN_SHORT
	} else {
		d.res.Minute_length = EMIN_OK
	}

	d.res.Dst_status = EDST_OK

	d.res.Bit0_ok = buffer[0] == 4
	d.res.Bit52_ok = buffer[52] == 0
	d.res.Bit59_ok = buffer[59] == 0

	/* only decode if set, bit 52 is informational */
	return d.res.Minute_length == EMIN_OK && d.res.Bit0_ok && d.res.Bit59_ok
}

// increaseOldTime combines the previous minute's residual with the current
// accumulated minute length to an integer number of minutes and applies it
// to the current time.
func (d *Decoder) increaseOldTime(initMin uint, minlen int, accMinlen uint,
	t *BrokenDownTime) int {
	/* See if there are any partial / split minutes to be combined: */
	if accMinlen <= 59000 {
		d.accMinlenPartial += accMinlen
		if d.accMinlenPartial >= 60000 {
			accMinlen = d.accMinlenPartial
			d.accMinlenPartial %= 60000
		}
	}
	/* Calculate number of minutes to increase time with: */
	increase := int(accMinlen / 60000)
	if accMinlen >= 60000 {
		d.accMinlenPartial %= 60000
	}
	/* Account for complete minutes with a short accMinlen: */
	if accMinlen%60000 > 59000 {
		increase++
		d.accMinlenPartial %= 60000
	}

	/* There is no previous time on the very first (partial) minute: */
	if initMin < 2 {
		for i := 0; i < increase; i++ {
			*t = AddMinute(*t, d.res.Dst_announce)
		}
	}
	return increase
}

func (d *Decoder) calculateDateTime(initMin, errflags uint, increase int,
	buffer []int, t BrokenDownTime, newtime *BrokenDownTime) uint {
	p1 := getpar(buffer, 17, 24, 54) /* year */
	tmp0 := getbcd(buffer, 17, 24)
	if !p1 {
		d.res.Year_status = EVAL_PARITY
	} else if tmp0 > 99 {
		d.res.Year_status = EVAL_BCD
		p1 = false
	} else {
		d.res.Year_status = EVAL_OK
	}
	if (initMin == 2 || increase != 0) && p1 && errflags == 0 {
		newtime.Year = tmp0
		/* check for jumps once month and mday are known and correct */
	}

	p2 := getpar(buffer, 25, 35, 55) /* month and mday */
	tmp0 = getbcd(buffer, 25, 29)
	tmp1 := getbcd(buffer, 30, 35)
	if !p2 {
		d.res.Month_status = EVAL_PARITY
		d.res.Mday_status = EVAL_PARITY
	} else {
		if tmp0 == 0 || tmp0 > 12 {
			d.res.Month_status = EVAL_BCD
			p2 = false
		} else {
			d.res.Month_status = EVAL_OK
		}
		if tmp1 == 0 || tmp1 > 31 {
			d.res.Mday_status = EVAL_BCD
			p2 = false
		} else {
			d.res.Mday_status = EVAL_OK
		}
	}
	if (initMin == 2 || increase != 0) && p2 && errflags == 0 {
		newtime.Mon = tmp0
		if initMin == 0 && d.synced && t.Mon != newtime.Mon {
			d.res.Month_status = EVAL_JUMP
		}
		newtime.Mday = tmp1
		if initMin == 0 && d.synced && t.Mday != newtime.Mday {
			d.res.Mday_status = EVAL_JUMP
		}
	}

	p3 := getpar(buffer, 36, 38, 56) /* wday */
	tmp0 = getbcd(buffer, 36, 38)
	if !p3 {
		d.res.Wday_status = EVAL_PARITY
	} else {
		if tmp0 == 7 {
			d.res.Wday_status = EVAL_BCD
			p3 = false
		} else {
			d.res.Wday_status = EVAL_OK
		}
	}
	if (initMin == 2 || increase != 0) && p3 && errflags == 0 {
		newtime.Wday = tmp0
		if initMin == 0 && d.synced && t.Wday != newtime.Wday {
			d.res.Wday_status = EVAL_JUMP
		}
	}

	centofs := CenturyOffset(*newtime)
	if centofs == -1 {
		d.res.Year_status = EVAL_BCD
		p1 = false
	} else {
		if initMin == 0 && d.synced && t.Year != BASE_YEAR+100*centofs+newtime.Year {
			d.res.Year_status = EVAL_JUMP
		}
		newtime.Year += BASE_YEAR + 100*centofs
		if newtime.Mday > LastDay(*newtime) {
			d.res.Mday_status = EVAL_BCD
			p1, p2, p3 = false, false, false
		}
	}

	p4 := getpar(buffer, 39, 51, 57) /* hour and minute */
	tmp0 = getbcd(buffer, 39, 44)
	tmp1 = getbcd(buffer, 45, 51)
	if !p4 {
		d.res.Hour_status = EVAL_PARITY
		d.res.Minute_status = EVAL_PARITY
	} else {
		if tmp0 > 23 {
			d.res.Hour_status = EVAL_BCD
			p4 = false
		} else {
			d.res.Hour_status = EVAL_OK
		}
		if tmp1 > 59 {
			d.res.Minute_status = EVAL_BCD
			p4 = false
		} else {
			d.res.Minute_status = EVAL_OK
		}
	}
	if (initMin == 2 || increase != 0) && p4 && errflags == 0 {
		newtime.Hour = tmp0
		if initMin == 0 && d.synced && t.Hour != newtime.Hour {
			d.res.Hour_status = EVAL_JUMP
		}
		newtime.Min = tmp1
		if initMin == 0 && d.synced && t.Min != newtime.Min {
			d.res.Minute_status = EVAL_JUMP
		}
	}

	errflags <<= 4
	if !p4 {
		errflags |= 1 << 3
	}
	if !p3 {
		errflags |= 1 << 2
	}
	if !p2 {
		errflags |= 1 << 1
	}
	if !p1 {
		errflags |= 1
	}
	return errflags
}

func (d *Decoder) noJumps() bool {
	return d.res.Minute_status != EVAL_JUMP &&
		d.res.Hour_status != EVAL_JUMP &&
		d.res.Mday_status != EVAL_JUMP &&
		d.res.Wday_status != EVAL_JUMP &&
		d.res.Month_status != EVAL_JUMP &&
		d.res.Year_status != EVAL_JUMP
}

// A jumped value is reported but not adopted, the running time from
// AddMinute wins. Jump detection needs a trusted reference, so it only
// runs while the previous minute committed; one rejected minute clears
// that and the next clean decode re-synchronizes.
func (d *Decoder) stampDateTime(errflags uint, newtime BrokenDownTime,
	t *BrokenDownTime) {
	if d.res.Minute_length == EMIN_OK && errflags&0x1f == 0 && d.noJumps() {
		t.Min = newtime.Min
		t.Hour = newtime.Hour
		t.Mday = newtime.Mday
		t.Mon = newtime.Mon
		t.Year = newtime.Year
		t.Wday = newtime.Wday
		if d.res.Dst_status != EDST_JUMP {
			t.Isdst = newtime.Isdst
		}
		d.synced = true
	} else {
		d.synced = false
	}
}

func (d *Decoder) handleLeapSecond(errflags uint, minlen int, buffer []int,
	t BrokenDownTime) uint {
	/* announcement on the otherwise unused B channel of second 19 */
	if buffer[19]&2 == 2 && errflags == 0 {
		d.leapCount++
	}
	if t.Min > 0 {
		d.res.Leap_announce = 2*d.leapCount > d.minuteCount
	}

	/* process possible leap second */
	if t.Min == 0 {
		d.res.Leapsecond_status = ELS_DONE
		if minlen == 60 {
			/* leap second processed, but missing */
			d.res.Minute_length = EMIN_SHORT
			errflags |= 1 << 5
		} else if minlen == 61 && buffer[17] == 1 {
			d.res.Leapsecond_status = ELS_ONE
		}
		d.res.Leap_announce = false
		d.leapCount = 0
	} else {
		d.res.Leapsecond_status = ELS_NONE
	}
	if minlen == 61 && d.res.Leapsecond_status == ELS_NONE {
		/* leap second not processed, so bad minute */
		d.res.Minute_length = EMIN_LONG
		errflags |= 1 << 5
	}

	return errflags
}

func (d *Decoder) handleDST(errflags uint, olderr bool, buffer []int,
	t BrokenDownTime, newtime *BrokenDownTime) uint {
	/*
	 * The change announcement is the B bit of second 53, the offset in
	 * effect the B bit of second 58. The A bits there belong to the
	 * fixed end-of-minute sequence and carry no time data.
	 */
	if buffer[53]&2 == 2 && errflags == 0 {
		d.dstCount++
	}
	if t.Min > 0 {
		d.res.Dst_announce = 2*d.dstCount > d.minuteCount
	}

	dst := (buffer[58] & 2) >> 1
	if dst != t.Isdst {
		/*
		 * Time offset change is OK if:
		 * - announced and on the hour
		 * - there was an error but not any more (needed if decoding
		 *   at startup is problematic)
		 * - initial state (otherwise DST would never be valid)
		 */
		if (d.res.Dst_announce && t.Min == 0) ||
			(olderr && errflags == 0) ||
			t.Isdst == -1 {
			newtime.Isdst = dst /* expected change */
		} else {
			d.res.Dst_status = EDST_JUMP
			/* sudden change, ignore */
			errflags |= 1 << 6
		}
	}

	/* done with DST, always clear the announcement at hh:00 */
	if d.res.Dst_announce && t.Min == 0 {
		d.res.Dst_status = EDST_DONE
	}
	if t.Min == 0 {
		d.res.Dst_announce = false
		d.dstCount = 0
	}
	return errflags
}

// DecodeTime decodes the current time from the bit buffer of a completed
// minute.
//
// The current time is first increased using AddMinute, and only if the
// parities and other checks match are these values replaced by their
// decoded counterparts.
//
// initMin indicates the state of the decoder: 2 = just starting, 1 = first
// minute mark passed, 0 = steady. minlen is the length of this minute in
// bits (normally 59; a minute at the full hour carrying a leap second is
// 61, and 60 there means the leap second is missing). accMinlen is the
// accumulated length of this minute in milliseconds.
func (d *Decoder) DecodeTime(initMin uint, minlen int, accMinlen uint,
	buffer []int, t *BrokenDownTime) DTResult {
	var newtime BrokenDownTime

	/* Initially, set time offset to unknown */
	if initMin == 2 {
		t.Isdst = -1
	}

	errflags := uint(1)
	if d.checkTimeSanity(minlen, buffer) {
		errflags = 0
	}
	if errflags == 0 {
		d.minuteCount++
		if d.minuteCount == 60 {
			d.minuteCount = 0
		}
	}

	increase := d.increaseOldTime(initMin, minlen, accMinlen, t)
	newtime.Isdst = t.Isdst /* save DST value, after any announced change */

	errflags = d.calculateDateTime(initMin, errflags, increase, buffer,
		*t, &newtime)

	if initMin < 2 {
		errflags = d.handleLeapSecond(errflags, minlen, buffer, *t)
		errflags = d.handleDST(errflags, d.olderr, buffer, *t, &newtime)
	}

	d.stampDateTime(errflags, newtime, t)

	if d.olderr && errflags == 0 {
		d.olderr = false
	}
	if errflags != 0 {
		d.olderr = true
	}

	return d.res
}
