package msfparse

import (
	"testing"
)

// encodeField writes the BCD of v into the A bits of buf[start..stop],
// most significant bit first.
func encodeField(buf []int, v int, start, stop uint) {
	bits := (v/10)<<4 | (v % 10)
	for i := stop; i >= start; i-- {
		buf[i] |= bits & 1
		bits >>= 1
	}
}

// setParity sets the B bit at the parity position so that the total
// number of set bits over the field and the parity bit is odd.
func setParity(buf []int, start, stop, parity uint) {
	par := 0
	for i := start; i <= stop; i++ {
		par += buf[i] & 1
	}
	if par&1 == 0 {
		buf[parity] |= 2
	}
}

// encodeMinute builds a valid bit buffer for the given time.
func encodeMinute(t BrokenDownTime) []int {
	buf := make([]int, BUFLEN)
	buf[0] = 4
	encodeField(buf, t.Year%100, 17, 24)
	encodeField(buf, t.Mon, 25, 29)
	encodeField(buf, t.Mday, 30, 35)
	encodeField(buf, t.Wday, 36, 38)
	encodeField(buf, t.Hour, 39, 44)
	encodeField(buf, t.Min, 45, 51)
	// fixed end-of-minute sequence on the A bits of seconds 53-58
	for i := 53; i <= 58; i++ {
		buf[i] |= 1
	}
	if t.Isdst == 1 {
		buf[58] |= 2 /* summer time flag */
	}
	setParity(buf, 17, 24, 54)
	setParity(buf, 25, 35, 55)
	setParity(buf, 36, 38, 56)
	setParity(buf, 39, 51, 57)
	return buf
}

func allFieldsOK(dt DTResult) bool {
	return dt.Minute_status == EVAL_OK && dt.Hour_status == EVAL_OK &&
		dt.Mday_status == EVAL_OK && dt.Wday_status == EVAL_OK &&
		dt.Month_status == EVAL_OK && dt.Year_status == EVAL_OK
}

func TestGetpar(t *testing.T) {
	buf := encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 34, 0})
	if !getpar(buf, 17, 24, 54) {
		t.Error("year parity of a valid minute does not hold")
	}
	if !getpar(buf, 25, 35, 55) || !getpar(buf, 36, 38, 56) ||
		!getpar(buf, 39, 51, 57) {
		t.Error("parity of a valid minute does not hold")
	}
	buf[54] ^= 2
	if getpar(buf, 17, 24, 54) {
		t.Error("year parity holds with a flipped parity bit")
	}
	buf[54] ^= 2
	buf[20] ^= 1
	if getpar(buf, 17, 24, 54) {
		t.Error("year parity holds with a flipped data bit")
	}
}

func TestGetbcd(t *testing.T) {
	buf := make([]int, BUFLEN)
	encodeField(buf, 59, 45, 51)
	if got := getbcd(buf, 45, 51); got != 59 {
		t.Errorf("getbcd(59) = %d", got)
	}
	buf = make([]int, BUFLEN)
	encodeField(buf, 8, 36, 38) // 3-bit field cannot hold 8, wraps to 0
	if got := getbcd(buf, 36, 38); got != 0 {
		t.Errorf("getbcd(3-bit 8) = %d", got)
	}
	// A nibble greater than 9 yields the 100 sentinel: 0 1101.
	buf = make([]int, BUFLEN)
	buf[26], buf[27], buf[29] = 1, 1, 1
	if got := getbcd(buf, 25, 29); got != 100 {
		t.Errorf("getbcd(nibble 13) = %d", got)
	}
}

// Feed the decoder three consecutive clean minutes from a cold start and
// watch it settle and commit.
func TestDecodeCleanMinutes(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime

	dt := d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 34, 0}), &tm)
	if !allFieldsOK(dt) || dt.Minute_length != EMIN_OK {
		t.Fatalf("first minute not clean: %+v", dt)
	}
	want := BrokenDownTime{2019, 3, 15, 5, 12, 34, -1}
	if tm != want {
		t.Fatalf("first minute: got %+v, want %+v", tm, want)
	}

	dt = d.DecodeTime(1, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 35, 0}), &tm)
	want = BrokenDownTime{2019, 3, 15, 5, 12, 35, 0}
	if !allFieldsOK(dt) || tm != want {
		t.Fatalf("second minute: got %+v / %+v, want %+v", dt, tm, want)
	}
	if dt.Dst_status != EDST_OK {
		t.Errorf("second minute Dst_status = %d", dt.Dst_status)
	}

	dt = d.DecodeTime(0, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 36, 0}), &tm)
	want = BrokenDownTime{2019, 3, 15, 5, 12, 36, 0}
	if !allFieldsOK(dt) || dt.Minute_length != EMIN_OK || tm != want {
		t.Fatalf("steady minute: got %+v / %+v, want %+v", dt, tm, want)
	}
	if dt.Dst_status != EDST_OK {
		t.Errorf("steady minute Dst_status = %d, want EDST_OK", dt.Dst_status)
	}
	if dt.Dst_announce {
		t.Error("steady minute reports a DST announcement")
	}
	if !dt.Bit0_ok || !dt.Bit52_ok || !dt.Bit59_ok {
		t.Errorf("marker bits not ok: %+v", dt)
	}
}

// The change announcement accumulates over the hour: a majority of
// minutes carrying the second-53 announcement bit latches it.
func TestDecodeDSTAnnounce(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime
	d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 31, 0, 0, 20, 0}), &tm)
	d.DecodeTime(1, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 31, 0, 0, 21, 0}), &tm)

	var dt DTResult
	for min := 22; min <= 24; min++ {
		buf := encodeMinute(BrokenDownTime{2019, 3, 31, 0, 0, min, 0})
		buf[53] |= 2
		dt = d.DecodeTime(0, 59, 60000, buf, &tm)
		if dt.Dst_status != EDST_OK {
			t.Fatalf("minute %d: Dst_status = %d, want EDST_OK", min, dt.Dst_status)
		}
	}
	if !dt.Dst_announce {
		t.Error("announcement not latched after a majority of flagged minutes")
	}
}

// A flipped parity bit must keep the decoded values out of the running
// time. The year-zero fallback date 1900-03-15 shares the weekday with
// 2018-03-15, so the century cross-check stays quiet and the parity
// status survives.
func TestDecodeParityViolation(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime

	d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2018, 3, 15, 4, 12, 34, 0}), &tm)

	buf := encodeMinute(BrokenDownTime{2018, 3, 15, 4, 12, 35, 0})
	buf[54] ^= 2
	dt := d.DecodeTime(1, 59, 60000, buf, &tm)
	if dt.Year_status != EVAL_PARITY {
		t.Errorf("Year_status = %d, want EVAL_PARITY", dt.Year_status)
	}
	want := BrokenDownTime{2018, 3, 15, 4, 12, 35, -1}
	if tm != want {
		t.Errorf("time adopted despite parity error: %+v, want %+v", tm, want)
	}
}

func TestDecodeBCDViolation(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime
	d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 34, 0}), &tm)

	// Month units nibble 1101 = 13.
	buf := encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 35, 0})
	buf[25], buf[26], buf[27], buf[28], buf[29] = 0, 1, 1, 0, 1
	buf[55] &^= 2
	setParity(buf, 25, 35, 55)
	dt := d.DecodeTime(1, 59, 60000, buf, &tm)
	if dt.Month_status != EVAL_BCD {
		t.Errorf("Month_status = %d, want EVAL_BCD", dt.Month_status)
	}
	if tm.Mon != 3 {
		t.Errorf("month adopted despite BCD error: %+v", tm)
	}
}

// A decoded value that disagrees with the monotonic increment on a
// settled decoder is reported as a jump and not adopted.
func TestDecodeJump(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime
	d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 34, 0}), &tm)
	d.DecodeTime(1, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 35, 0}), &tm)

	dt := d.DecodeTime(0, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 13, 36, 0}), &tm)
	if dt.Hour_status != EVAL_JUMP {
		t.Errorf("Hour_status = %d, want EVAL_JUMP", dt.Hour_status)
	}
	want := BrokenDownTime{2019, 3, 15, 5, 12, 36, 0}
	if tm != want {
		t.Errorf("jumped hour adopted: got %+v, want %+v", tm, want)
	}
}

// Spring forward: with the change announced, the minute wrap from 00:59
// lands on 02:00 summer time and the decoder reports the transition done.
// 1999-03-28 was the last Sunday of March, with the year's first bit set
// like the summer time flag.
func TestDecodeDSTChange(t *testing.T) {
	d := NewDecoder()
	d.minuteCount = 10
	d.dstCount = 8
	d.res.Dst_announce = true
	tm := BrokenDownTime{1999, 3, 28, 0, 0, 59, 0}

	buf := encodeMinute(BrokenDownTime{1999, 3, 28, 0, 2, 0, 1})
	dt := d.DecodeTime(0, 59, 60000, buf, &tm)

	want := BrokenDownTime{1999, 3, 28, 0, 2, 0, 1}
	if tm != want {
		t.Fatalf("spring forward: got %+v, want %+v", tm, want)
	}
	if dt.Dst_status != EDST_DONE {
		t.Errorf("Dst_status = %d, want EDST_DONE", dt.Dst_status)
	}
	if dt.Dst_announce {
		t.Error("Dst_announce not cleared at the hour")
	}
}

// A 61-bit minute at a full hour carries a leap second and still commits.
func TestDecodeLeapSecond(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime
	d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 58, 0}), &tm)
	d.DecodeTime(1, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 59, 0}), &tm)

	dt := d.DecodeTime(0, 61, 61000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 13, 0, 0}), &tm)
	if dt.Leapsecond_status != ELS_DONE {
		t.Errorf("Leapsecond_status = %d, want ELS_DONE", dt.Leapsecond_status)
	}
	if dt.Minute_length != EMIN_OK {
		t.Errorf("Minute_length = %d, want EMIN_OK", dt.Minute_length)
	}
	want := BrokenDownTime{2019, 3, 15, 5, 13, 0, 0}
	if tm != want {
		t.Errorf("leap minute not committed: got %+v, want %+v", tm, want)
	}
}

// A 60-bit minute at a full hour means the announced leap second never
// happened: the minute is short and must not commit.
func TestDecodeLeapSecondMissing(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime
	d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 58, 0}), &tm)
	d.DecodeTime(1, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 59, 0}), &tm)

	dt := d.DecodeTime(0, 60, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 13, 0, 0}), &tm)
	if dt.Minute_length != EMIN_SHORT {
		t.Errorf("Minute_length = %d, want EMIN_SHORT", dt.Minute_length)
	}
	if tm.Min != 0 || tm.Hour != 13 {
		// the running time still advanced by one minute
		t.Errorf("running time wrong: %+v", tm)
	}
}

// A minute that overran the buffer is reported long and skipped.
func TestDecodeTooLongMinute(t *testing.T) {
	d := NewDecoder()
	var tm BrokenDownTime
	d.DecodeTime(2, 59, 60000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 34, 0}), &tm)

	dt := d.DecodeTime(1, -1, 62000,
		encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 35, 0}), &tm)
	if dt.Minute_length != EMIN_LONG {
		t.Errorf("Minute_length = %d, want EMIN_LONG", dt.Minute_length)
	}
}

// Round trip from the spec: a valid encoded minute decodes back to the
// original date and time with every status clean.
func TestDecodeRoundTrip(t *testing.T) {
	times := []BrokenDownTime{
		{2019, 3, 15, 5, 12, 34, 0},
		{1999, 12, 31, 5, 23, 58, 0},
		{2020, 2, 29, 6, 6, 7, 0},
		{2084, 7, 1, 6, 0, 1, 0},
	}
	for _, orig := range times {
		d := NewDecoder()
		var tm BrokenDownTime
		dt := d.DecodeTime(2, 59, 60000, encodeMinute(orig), &tm)
		if !allFieldsOK(dt) {
			t.Errorf("%+v: statuses not ok: %+v", orig, dt)
			continue
		}
		orig.Isdst = -1 // unknown on the first minute
		if tm != orig {
			t.Errorf("round trip: got %+v, want %+v", tm, orig)
		}
	}
}
