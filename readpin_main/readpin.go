/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	readpin.go: Raw GPIO probe for receiver bring-up. Prints one sample
	per sampling interval until interrupted.
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/b3nn0/nplpi/common"
	"github.com/b3nn0/nplpi/msfparse"
)

func main() {
	sysfs := flag.Bool("sysfs", false, "use the sysfs GPIO interface instead of /dev/gpiomem")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Printf("usage: %s [-sysfs] config.json\n", os.Args[0])
		os.Exit(common.EX_USAGE)
	}

	hw, err := msfparse.ReadHardware(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", flag.Arg(0), err.Error())
		os.Exit(common.EX_DATAERR)
	}

	var src msfparse.PulseSource
	if *sysfs {
		src, err = msfparse.OpenSysfsPulse(hw)
	} else {
		src, err = msfparse.OpenRpioPulse(hw)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "GPIO pin %d: %s\n", hw.Pin, err.Error())
		os.Exit(1)
	}
	defer src.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Second / time.Duration(hw.Freq)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Printf("\n")
			return
		case <-ticker.C:
			p := src.GetPulse()
			if p == 2 {
				fmt.Printf("*")
			} else {
				fmt.Printf("%d", p)
			}
		}
	}
}
