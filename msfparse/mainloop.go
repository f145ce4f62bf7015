/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	mainloop.go: Sequence the sampler, the framer and the decoder, drive
	the display hooks and handle clock-set requests.
*/

package msfparse

// Clock-set outcome.
const (
	ESC_UNSET = iota
	ESC_OK
	ESC_UNSAFE
	ESC_FAIL
)

// MLResult is mutated by the input-processing hooks and consumed by the
// main loop and the clock setter.
type MLResult struct {
	Logfilename    string
	Settime        bool
	Settime_result int
	Quit           bool
}

// Hooks is the capability set of a main loop consumer. Any hook may be
// nil.
type Hooks struct {
	DisplayBit        func(GBResult, int)
	DisplayLongMinute func()
	DisplayMinute     func(int)
	DisplayNewSecond  func()
	DisplayTime       func(DTResult, BrokenDownTime)

	ProcessInput          func(MLResult, int) MLResult
	PostProcessInput      func(MLResult, int) MLResult
	ProcessSetclockResult func(MLResult, int) MLResult

	// Setclock commits the decoded time to the host clock, returning
	// ESC_OK or ESC_FAIL. Only called when SetclockOK holds.
	Setclock func(BrokenDownTime) int
}

// SetclockOK reports whether the decoded minute is safe to commit to the
// host clock: the decoder is in steady state, every field decoded clean,
// the minute has the right length and ends in a proper minute marker.
func SetclockOK(initMin uint, dt DTResult, bit GBResult) bool {
	return initMin == 0 &&
		dt.Minute_length == EMIN_OK &&
		dt.Minute_status == EVAL_OK &&
		dt.Hour_status == EVAL_OK &&
		dt.Mday_status == EVAL_OK &&
		dt.Wday_status == EVAL_OK &&
		dt.Month_status == EVAL_OK &&
		dt.Year_status == EVAL_OK &&
		bit.Marker == EMARK_MINUTE
}

func checkHandleNewMinute(bit GBResult, mlr *MLResult, in *Input,
	dec *Decoder, bitpos int, curtime *BrokenDownTime, minlen int,
	wasToolong bool, initMin *uint, hooks Hooks) {
	haveResult := false

	if (bit.Marker == EMARK_MINUTE || bit.Marker == EMARK_LATE) &&
		!wasToolong {
		if hooks.DisplayMinute != nil {
			hooks.DisplayMinute(minlen)
		}
		dt := dec.DecodeTime(*initMin, minlen, in.AccMinlen(),
			in.Buffer(), curtime)

		if hooks.DisplayTime != nil {
			hooks.DisplayTime(dt, *curtime)
		}

		if mlr.Settime {
			haveResult = true
			if SetclockOK(*initMin, dt, bit) && hooks.Setclock != nil {
				mlr.Settime_result = hooks.Setclock(*curtime)
			} else {
				mlr.Settime_result = ESC_UNSAFE
			}
		}
		in.ResetAccMinlen()
		if *initMin > 0 {
			*initMin--
		}
	}
	if haveResult && hooks.ProcessSetclockResult != nil {
		*mlr = hooks.ProcessSetclockResult(*mlr, bitpos)
	}
}

// Mainloop repeatedly grabs one bit, lets the input hook mutate the loop
// state, renders the bit, advances the framer and decodes each completed
// minute. It returns after the source is exhausted or a hook requests
// quit, with the input cleaned up.
func Mainloop(in *Input, dec *Decoder, logfilename string, hooks Hooks) {
	minlen := 0
	bitpos := 0
	oldBitpos := 0
	initMin := uint(2)
	var curtime BrokenDownTime
	var mlr MLResult
	wasToolong := false

	mlr.Logfilename = logfilename

	for {
		bit := in.GetBit()
		if hooks.ProcessInput != nil {
			mlr = hooks.ProcessInput(mlr, bitpos)
			if bit.Done || mlr.Quit {
				break
			}
		}

		bitpos = in.Bitpos()
		if hooks.PostProcessInput != nil {
			mlr = hooks.PostProcessInput(mlr, bitpos)
		}
		if !bit.Skip && !mlr.Quit && hooks.DisplayBit != nil {
			hooks.DisplayBit(bit, bitpos)
		}

		bit = in.NextBit()
		if minlen == -1 {
			checkHandleNewMinute(bit, &mlr, in, dec, bitpos, &curtime,
				minlen, wasToolong, &initMin, hooks)
			wasToolong = true
		}

		if bit.Marker == EMARK_MINUTE {
			/* minute marker is at bit 0 */
			minlen = oldBitpos
		} else if bit.Marker == EMARK_TOOLONG ||
			bit.Marker == EMARK_LATE {
			minlen = -1
			/*
			 * leave acc_minlen alone, any minute marker already
			 * processed
			 */
			if hooks.DisplayLongMinute != nil {
				hooks.DisplayLongMinute()
			}
		}
		if hooks.DisplayNewSecond != nil {
			hooks.DisplayNewSecond()
		}

		checkHandleNewMinute(bit, &mlr, in, dec, bitpos, &curtime,
			minlen, wasToolong, &initMin, hooks)
		wasToolong = false
		if bit.Done || mlr.Quit {
			break
		}
		oldBitpos = bitpos
	}
	in.Cleanup()
}
