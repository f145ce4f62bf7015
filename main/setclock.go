/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	setclock.go: Commit a decoded minute to the system clock.
*/

package main

import (
	"fmt"
	"log"
	"os/exec"
	"time"

	"github.com/b3nn0/nplpi/common"
	"github.com/b3nn0/nplpi/msfparse"
)

// setclock sets the system clock to the decoded time. The main loop
// calls this right after the begin-of-minute marker, so second :01 of
// the new minute has just started.
func setclock(tm msfparse.BrokenDownTime) int {
	setStr := fmt.Sprintf("%04d%02d%02d %02d:%02d:01",
		tm.Year, tm.Mon, tm.Mday, tm.Hour, tm.Min)
	log.Printf("setting system time from %s to: '%s'\n",
		time.Now().Format("20060102 15:04:05.000"), setStr)
	var err error
	if common.IsRunningAsRoot() {
		err = exec.Command("date", "-s", setStr).Run()
	} else {
		err = exec.Command("sudo", "date", "-s", setStr).Run()
	}
	if err != nil {
		log.Printf("Set Date failure: %s error\n", err)
		return msfparse.ESC_FAIL
	}
	log.Printf("Time set from MSF. Current time is %v\n", time.Now())
	return msfparse.ESC_OK
}
