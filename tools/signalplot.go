/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	signalplot.go: Render a per-sample signal snapshot file recorded with
	"nplpi -snapshot" to a PNG, one trace per second, for antenna and
	receiver diagnosis.

	Usage: signalplot <snapshot.bin> <out.png> [seconds]
*/

package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const defaultSeconds = 10

// readRecord reads one snapshot record: a little-endian sample count
// followed by the packed sample bits.
func readRecord(r *bufio.Reader) ([]int, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > 1<<22 {
		return nil, fmt.Errorf("implausible sample count %d", n)
	}
	packed := make([]byte, (n+7)/8)
	if _, err := io.ReadFull(r, packed); err != nil {
		return nil, err
	}
	samples := make([]int, n)
	for i := uint32(0); i < n; i++ {
		samples[i] = int(packed[i/8]>>(i&7)) & 1
	}
	return samples, nil
}

func main() {
	if len(os.Args) != 3 && len(os.Args) != 4 {
		fmt.Printf("usage: %s snapshot.bin out.png [seconds]\n", os.Args[0])
		os.Exit(64)
	}
	seconds := defaultSeconds
	if len(os.Args) == 4 {
		s, err := strconv.Atoi(os.Args[3])
		if err != nil || s < 1 {
			fmt.Fprintf(os.Stderr, "bad second count %q\n", os.Args[3])
			os.Exit(64)
		}
		seconds = s
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
	defer f.Close()
	rd := bufio.NewReader(f)

	p := plot.New()
	p.Title.Text = "MSF signal snapshot"
	p.X.Label.Text = "sample within second"
	p.Y.Label.Text = "second (trace offset)"

	for sec := 0; sec < seconds; sec++ {
		samples, err := readRecord(rd)
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "record %d: %s\n", sec, err.Error())
			break
		}
		pts := make(plotter.XYs, len(samples))
		for i, s := range samples {
			pts[i].X = float64(i)
			// stack traces with a little headroom between them
			pts[i].Y = float64(sec) + 0.8*float64(s)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err.Error())
			os.Exit(1)
		}
		p.Add(line)
	}

	if err := p.Save(10*vg.Inch, 6*vg.Inch, os.Args[2]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}
