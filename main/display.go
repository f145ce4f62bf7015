/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	display.go: Render a decoded minute on stdout.
*/

package main

import (
	"fmt"

	"github.com/b3nn0/nplpi/msfparse"
)

func displayTime(dt msfparse.DTResult, tm msfparse.BrokenDownTime) {
	fmt.Printf("%s %04d-%02d-%02d %s %02d:%02d\n",
		offsetPrefix(tm.Isdst), tm.Year, tm.Mon, tm.Mday,
		msfparse.Weekday[(tm.Wday%7+7)%7], tm.Hour, tm.Min)
	if dt.Minute_length == msfparse.EMIN_LONG {
		fmt.Printf("Minute too long\n")
	} else if dt.Minute_length == msfparse.EMIN_SHORT {
		fmt.Printf("Minute too short\n")
	}
	if dt.Dst_status == msfparse.EDST_JUMP {
		fmt.Printf("Time offset jump (ignored)\n")
	} else if dt.Dst_status == msfparse.EDST_DONE {
		fmt.Printf("Time offset changed\n")
	}
	displayValue("Minute", dt.Minute_status)
	displayValue("Hour", dt.Hour_status)
	displayValue("Day-of-month", dt.Mday_status)
	displayValue("Day-of-week", dt.Wday_status)
	displayValue("Month", dt.Month_status)
	displayValue("Year", dt.Year_status)
	if !dt.Bit0_ok {
		fmt.Printf("Minute marker error\n")
	}
	if dt.Dst_announce {
		fmt.Printf("Time offset change announced\n")
	}
	if dt.Leap_announce {
		fmt.Printf("Leap second announced\n")
	}
	if dt.Leapsecond_status == msfparse.ELS_DONE {
		fmt.Printf("Leap second processed\n")
	} else if dt.Leapsecond_status == msfparse.ELS_ONE {
		fmt.Printf("Leap second processed with value 1 instead of 0\n")
	}
	fmt.Printf("\n")
}

func displayValue(field string, status int) {
	switch status {
	case msfparse.EVAL_PARITY:
		fmt.Printf("%s parity error\n", field)
	case msfparse.EVAL_BCD:
		fmt.Printf("%s value error\n", field)
	case msfparse.EVAL_JUMP:
		fmt.Printf("%s value jump\n", field)
	}
}

func offsetPrefix(isdst int) string {
	if isdst == 1 {
		return "summer"
	} else if isdst == 0 {
		return "winter"
	}
	return "?     "
}
