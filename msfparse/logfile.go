/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	logfile.go: Read and write the one-character-per-bit log format. Each
	symbol is a single byte, minutes are separated by newlines, and an
	"a<ms>" record after each minute marker carries the accumulated minute
	length in milliseconds.
*/

package msfparse

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Characters that carry meaning in a log file. Anything else is skipped
// on playback.
const logChars = "012345\nxr#*_a"

// logWrite appends one symbol to the log file. Each symbol is a single
// short write so that the flusher never observes a torn record.
func (in *Input) logWrite(c byte) {
	if in.logfile == nil {
		return
	}
	if _, err := in.logfile.Write([]byte{c}); err != nil {
		log.Printf("logfile write: %s\n", err.Error())
	}
}

func (in *Input) logWriteAccMinlen(acc uint) {
	if in.logfile == nil {
		return
	}
	if _, err := fmt.Fprintf(in.logfile, "a%d\n", acc); err != nil {
		log.Printf("logfile write: %s\n", err.Error())
	}
}

// AppendLogfile opens the named log file for appending, writes the
// session header and starts the background flusher.
func (in *Input) AppendLogfile(logfilename string) error {
	if logfilename == "" {
		return fmt.Errorf("logfilename is empty")
	}
	f, err := os.OpenFile(logfilename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	in.logfile = f
	if _, err := in.logfile.WriteString("\n--new log--\n\n"); err != nil {
		return err
	}

	in.flushQuit = make(chan struct{})
	in.flushDone = make(chan struct{})
	go in.flushLogfile()
	return nil
}

// flushLogfile syncs the log file once per minute until CloseLogfile.
func (in *Input) flushLogfile() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			in.logfile.Sync()
		case <-in.flushQuit:
			close(in.flushDone)
			return
		}
	}
}

// CloseLogfile joins the flusher and closes the log file.
func (in *Input) CloseLogfile() error {
	if in.logfile == nil {
		return nil
	}
	if in.flushQuit != nil {
		close(in.flushQuit)
		<-in.flushDone
		in.flushQuit = nil
		in.flushDone = nil
	}
	err := in.logfile.Close()
	in.logfile = nil
	return err
}

func (in *Input) getc() int {
	if in.pushback >= 0 {
		c := in.pushback
		in.pushback = -1
		return c
	}
	b, err := in.inrd.ReadByte()
	if err != nil {
		in.ineof = true
		return -1
	}
	return int(b)
}

func (in *Input) ungetc(c int) {
	if c >= 0 {
		in.pushback = c
	}
}

// skipInvalid skips over bytes that carry no meaning, converting a lone
// \r to \n so that \r, \r\n and \n line endings all read the same.
func (in *Input) skipInvalid() int {
	inch := -1
	for {
		oldinch := inch
		if in.ineof {
			break
		}
		inch = in.getc()
		if oldinch == '\r' && inch != '\n' {
			/*
			 * inch came straight from the reader, return it there so
			 * that the caller's look-ahead pushback cannot overwrite it.
			 */
			if inch >= 0 {
				in.inrd.UnreadByte()
			}
			inch = '\n'
		}
		if inch >= 0 && strings.IndexByte(logChars, byte(inch)) >= 0 {
			break
		}
	}
	return inch
}

func (in *Input) getBitFile() GBResult {
	in.setNewState()

	inch := in.skipInvalid()
	/*
	 * bit.T is set to a fake value for compatibility with old log files
	 * not storing acc_minlen values and to increase time when the main
	 * loop splits too long minutes.
	 */

	switch inch {
	case -1:
		in.gbRes.Done = true
		return in.gbRes
	case '0', '1', '2', '3', '4':
		if inch == '4' {
			/* mirror the live framer, the marker restarts the buffer */
			in.bitpos = 0
		}
		in.buffer[in.bitpos] = inch - '0'
		switch inch {
		case '0':
			in.gbRes.Bitval = EBV_00
		case '1':
			in.gbRes.Bitval = EBV_10
		case '2':
			in.gbRes.Bitval = EBV_01
		case '3':
			in.gbRes.Bitval = EBV_11
		case '4':
			in.gbRes.Bitval = EBV_BOM
		}
		in.bit.T = 1000
		if inch == '4' {
			if in.gbRes.Marker == EMARK_NONE {
				in.gbRes.Marker = EMARK_MINUTE
			} else if in.gbRes.Marker == EMARK_TOOLONG {
				in.gbRes.Marker = EMARK_LATE
			}
		}
	case 'x':
		in.gbRes.Hwstat = EHW_TRANSMIT
		in.bit.T = 1500
	case 'r':
		in.gbRes.Hwstat = EHW_RECEIVE
		in.bit.T = 1500
	case '#':
		in.gbRes.Hwstat = EHW_RANDOM
		in.bit.T = 1500
	case '*':
		in.gbRes.Bad_io = true
		in.bit.T = 0
	case '_':
		/* retain old value in buffer[bitpos] */
		in.gbRes.Bitval = EBV_NONE
		in.bit.T = 1000
	case 'a':
		/* acc_minlen, up to 2^32-1 ms */
		in.gbRes.Skip = true
		in.bit.T = 0
		val := uint(0)
		ndigits := 0
		for ndigits < 10 {
			c := in.getc()
			if c < '0' || c > '9' {
				in.ungetc(c)
				break
			}
			val = val*10 + uint(c-'0')
			ndigits++
		}
		if ndigits == 0 {
			in.gbRes.Done = true
		} else {
			in.accMinlen = val
		}
		in.readAccMinlen = !in.gbRes.Done
	}

	if !in.readAccMinlen {
		in.accMinlen += uint(in.bit.T)
	}

	/*
	 * Read ahead 1 character to check if a minute marker is coming. This
	 * prevents emark_toolong or emark_late being set one bit early.
	 */
	oldinch := inch
	inch = in.skipInvalid()
	if !in.ineof {
		if in.decBp == 0 && in.bitpos > 0 && oldinch != '\n' &&
			(inch == '\n' || inch == 'a') {
			in.decBp = 1
		}
	} else {
		in.gbRes.Done = true
	}
	in.ungetc(inch)

	return in.gbRes
}
