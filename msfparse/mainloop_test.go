package msfparse

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// minuteChars renders the data bits 1..59 of an encoded buffer the way
// the live log writer would.
func minuteChars(buf []int) string {
	s := ""
	for i := 1; i <= 59; i++ {
		s += fmt.Sprintf("%d", buf[i])
	}
	return s
}

// Replay a log of three consecutive minutes through the full loop. The
// decoder has to settle during the first two minutes and commit from the
// third on, at which point setting the clock becomes safe.
func TestMainloopReplay(t *testing.T) {
	name := filepath.Join(t.TempDir(), "replay.log")

	content := "\n--new log--\n\n"
	content += "4a500\n"
	content += minuteChars(encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 34, 0}))
	content += "4a60000\n"
	content += minuteChars(encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 35, 0}))
	content += "4a60000\n"
	content += minuteChars(encodeMinute(BrokenDownTime{2019, 3, 15, 5, 12, 36, 0}))
	content += "4a60000\n"
	if err := os.WriteFile(name, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	in, err := NewFileInput(name)
	if err != nil {
		t.Fatal(err)
	}

	var times []BrokenDownTime
	var results []DTResult
	var setResults []int
	setclockCalls := 0
	armed := true

	hooks := Hooks{
		DisplayTime: func(dt DTResult, tm BrokenDownTime) {
			results = append(results, dt)
			times = append(times, tm)
		},
		ProcessInput: func(mlr MLResult, bitpos int) MLResult {
			if armed {
				mlr.Settime = true
			}
			return mlr
		},
		ProcessSetclockResult: func(mlr MLResult, bitpos int) MLResult {
			setResults = append(setResults, mlr.Settime_result)
			if mlr.Settime_result == ESC_OK {
				armed = false
				mlr.Settime = false
			}
			return mlr
		},
		Setclock: func(tm BrokenDownTime) int {
			setclockCalls++
			return ESC_OK
		},
	}

	Mainloop(in, NewDecoder(), "", hooks)

	if len(times) != 4 {
		t.Fatalf("decoded %d minutes, want 4", len(times))
	}
	last := times[len(times)-1]
	want := BrokenDownTime{2019, 3, 15, 5, 12, 36, 0}
	if last != want {
		t.Errorf("final time %+v, want %+v", last, want)
	}
	dt := results[len(results)-1]
	if !allFieldsOK(dt) || dt.Minute_length != EMIN_OK {
		t.Errorf("final minute not clean: %+v", dt)
	}

	if setclockCalls != 1 {
		t.Errorf("setclock called %d times, want 1", setclockCalls)
	}
	if setResults[len(setResults)-1] != ESC_OK {
		t.Errorf("final settime result %d, want ESC_OK", setResults[len(setResults)-1])
	}
	for _, r := range setResults[:len(setResults)-1] {
		if r != ESC_UNSAFE {
			t.Errorf("early settime result %d, want ESC_UNSAFE", r)
		}
	}
}

// A quit request from the input hook stops the loop at the next bit.
func TestMainloopQuit(t *testing.T) {
	name := filepath.Join(t.TempDir(), "quit.log")
	if err := os.WriteFile(name, []byte("4000000000"), 0644); err != nil {
		t.Fatal(err)
	}
	in, err := NewFileInput(name)
	if err != nil {
		t.Fatal(err)
	}

	bits := 0
	hooks := Hooks{
		DisplayBit: func(gb GBResult, bitpos int) {
			bits++
		},
		ProcessInput: func(mlr MLResult, bitpos int) MLResult {
			if bits >= 3 {
				mlr.Quit = true
			}
			return mlr
		},
	}
	Mainloop(in, NewDecoder(), "", hooks)
	if bits < 3 || bits > 4 {
		t.Errorf("loop consumed %d bits before quitting", bits)
	}
}
