/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	analyze.go: Offline replay of a recorded bit log, decoding each
	minute to stdout.
*/

package main

import (
	"fmt"
	"os"

	"github.com/b3nn0/nplpi/common"
	"github.com/b3nn0/nplpi/msfparse"
)

func displayBit(in *msfparse.Input) func(msfparse.GBResult, int) {
	return func(gb msfparse.GBResult, bitpos int) {
		if msfparse.IsSpaceBit(bitpos) {
			fmt.Printf(" ")
		}
		if gb.Hwstat == msfparse.EHW_RECEIVE {
			fmt.Printf("r")
		} else if gb.Hwstat == msfparse.EHW_TRANSMIT {
			fmt.Printf("x")
		} else if gb.Hwstat == msfparse.EHW_RANDOM {
			fmt.Printf("#")
		} else if gb.Bitval == msfparse.EBV_NONE {
			fmt.Printf("_")
		} else {
			fmt.Printf("%d", in.Buffer()[bitpos])
		}
	}
}

func displayTime(dt msfparse.DTResult, tm msfparse.BrokenDownTime) {
	offset := "?     "
	if tm.Isdst == 1 {
		offset = "summer"
	} else if tm.Isdst == 0 {
		offset = "winter"
	}
	fmt.Printf("%s %04d-%02d-%02d %s %02d:%02d\n",
		offset, tm.Year, tm.Mon, tm.Mday,
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
	printValue("Minute", dt.Minute_status)
	printValue("Hour", dt.Hour_status)
	printValue("Day-of-month", dt.Mday_status)
	printValue("Day-of-week", dt.Wday_status)
	printValue("Month", dt.Month_status)
	printValue("Year", dt.Year_status)
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

func printValue(field string, status int) {
	switch status {
	case msfparse.EVAL_PARITY:
		fmt.Printf("%s parity error\n", field)
	case msfparse.EVAL_BCD:
		fmt.Printf("%s value error\n", field)
	case msfparse.EVAL_JUMP:
		fmt.Printf("%s value jump\n", field)
	}
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("usage: %s infile\n", os.Args[0])
		os.Exit(common.EX_USAGE)
	}

	in, err := msfparse.NewFileInput(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}

	hooks := msfparse.Hooks{
		DisplayBit: displayBit(in),
		DisplayLongMinute: func() {
			fmt.Printf(" L ")
		},
		DisplayMinute: func(minlen int) {
			cutoff := in.Cutoff()
			fmt.Printf(" (%d) %d ", in.AccMinlen(), minlen)
			if cutoff == -1 {
				fmt.Printf("?\n")
			} else {
				fmt.Printf("%6.4f\n", float64(cutoff)/1e4)
			}
		},
		DisplayTime: displayTime,
	}

	msfparse.Mainloop(in, msfparse.NewDecoder(), "", hooks)
}
