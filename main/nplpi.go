/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	nplpi.go: MSF receiver daemon. Samples the demodulator output on a
	GPIO pin, decodes the time broadcast, publishes status and metrics
	and optionally sets the system clock.
*/

package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/b3nn0/nplpi/common"
	"github.com/b3nn0/nplpi/msfparse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/takama/daemon"
)

const (
	// name of the service
	name        = "nplpi"
	description = "MSF 60 kHz time signal receiver"

	// Address on which the management interface listens.
	managementAddr = ":8110"

	dataLogLocation = "/var/log/nplpi.sqlite"
)

var nplpiBuild string
var nplpiVersion string

type status struct {
	Version          string
	UptimeSeconds    int64
	BitsReceived     uint64
	MinutesDecoded   uint64
	MinutesCommitted uint64
	LastTime         string
	LastOffset       string
	LastMinuteLength int
	LastAccMinlen    uint
	RealfreqHz       float64
	SettimeResult    string
	LastCommitted    time.Time
}

var globalStatus status
var statusMutex sync.Mutex

var timeStarted time.Time

var stdlog, errlog *log.Logger

// Prometheus metrics, exposed on the management address.
var (
	secondsSampled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nplpi_seconds_sampled_total",
		Help: "Seconds classified by the pulse sampler.",
	})

	bitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nplpi_bits_total",
			Help: "Bits received by log symbol.",
		},
		[]string{"symbol"},
	)

	minutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nplpi_minutes_total",
			Help: "Decoded minutes by outcome.",
		},
		[]string{"outcome"},
	)

	currentRealfreq = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nplpi_realfreq_hz",
		Help: "Estimated sample rate of the pulse sampler.",
	})
)

func bitSymbol(gb msfparse.GBResult, buffer []int, bitpos int) byte {
	switch {
	case gb.Bad_io:
		return '*'
	case gb.Hwstat == msfparse.EHW_RECEIVE:
		return 'r'
	case gb.Hwstat == msfparse.EHW_TRANSMIT:
		return 'x'
	case gb.Hwstat == msfparse.EHW_RANDOM:
		return '#'
	case gb.Bitval == msfparse.EBV_NONE:
		return '_'
	default:
		return byte('0' + buffer[bitpos])
	}
}

func minuteOutcome(dt msfparse.DTResult) string {
	switch {
	case dt.Minute_length == msfparse.EMIN_SHORT:
		return "short"
	case dt.Minute_length == msfparse.EMIN_LONG:
		return "long"
	case dt.Minute_status != msfparse.EVAL_OK ||
		dt.Hour_status != msfparse.EVAL_OK ||
		dt.Mday_status != msfparse.EVAL_OK ||
		dt.Wday_status != msfparse.EVAL_OK ||
		dt.Month_status != msfparse.EVAL_OK ||
		dt.Year_status != msfparse.EVAL_OK:
		return "error"
	case !dt.Bit0_ok || !dt.Bit59_ok:
		return "marker_error"
	default:
		return "committed"
	}
}

// makeHooks wires the display, the status surface, the metrics, the
// minute datalog and the clock setter into the main loop.
func makeHooks(in *msfparse.Input, settime bool, snapshotFile *os.File,
	sigChan chan os.Signal) msfparse.Hooks {
	armed := settime

	return msfparse.Hooks{
		DisplayBit: func(gb msfparse.GBResult, bitpos int) {
			if msfparse.IsSpaceBit(bitpos) {
				fmt.Printf(" ")
			}
			sym := bitSymbol(gb, in.Buffer(), bitpos)
			fmt.Printf("%c", sym)
			bitsTotal.With(prometheus.Labels{"symbol": string(sym)}).Inc()
			statusMutex.Lock()
			globalStatus.BitsReceived++
			statusMutex.Unlock()
		},

		DisplayNewSecond: func() {
			bi := in.Bitinfo()
			secondsSampled.Inc()
			currentRealfreq.Set(float64(bi.Realfreq) / 1e6)
			statusMutex.Lock()
			globalStatus.RealfreqHz = float64(bi.Realfreq) / 1e6
			globalStatus.LastAccMinlen = in.AccMinlen()
			statusMutex.Unlock()
			if snapshotFile != nil {
				writeSnapshot(snapshotFile, bi)
			}
		},

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

		DisplayTime: func(dt msfparse.DTResult, tm msfparse.BrokenDownTime) {
			displayTime(dt, tm)
			outcome := minuteOutcome(dt)
			minutesTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
			logMinuteToDatalog(dt, tm, in.AccMinlen(), in.Cutoff())
			statusMutex.Lock()
			globalStatus.MinutesDecoded++
			globalStatus.LastMinuteLength = dt.Minute_length
			globalStatus.LastTime = fmt.Sprintf("%04d-%02d-%02d %s %02d:%02d",
				tm.Year, tm.Mon, tm.Mday, msfparse.Weekday[(tm.Wday%7+7)%7],
				tm.Hour, tm.Min)
			globalStatus.LastOffset = offsetName(tm.Isdst)
			if outcome == "committed" {
				globalStatus.MinutesCommitted++
				globalStatus.LastCommitted = time.Now()
			}
			statusMutex.Unlock()
		},

		ProcessInput: func(mlr msfparse.MLResult, bitpos int) msfparse.MLResult {
			select {
			case sig := <-sigChan:
				log.Printf("caught signal %v, shutting down.\n", sig)
				mlr.Quit = true
			default:
			}
			if armed {
				mlr.Settime = true
			}
			return mlr
		},

		ProcessSetclockResult: func(mlr msfparse.MLResult, bitpos int) msfparse.MLResult {
			switch mlr.Settime_result {
			case msfparse.ESC_OK:
				log.Printf("system clock set.\n")
				armed = false
				mlr.Settime = false
			case msfparse.ESC_UNSAFE:
				// decode not trustworthy yet, try again next minute
			case msfparse.ESC_FAIL:
				log.Printf("setting system clock failed, giving up.\n")
				armed = false
				mlr.Settime = false
			}
			statusMutex.Lock()
			globalStatus.SettimeResult = settimeResultName(mlr.Settime_result)
			statusMutex.Unlock()
			return mlr
		},

		Setclock: setclock,
	}
}

func offsetName(isdst int) string {
	switch isdst {
	case 0:
		return "winter"
	case 1:
		return "summer"
	default:
		return "?"
	}
}

func settimeResultName(r int) string {
	switch r {
	case msfparse.ESC_OK:
		return "ok"
	case msfparse.ESC_UNSAFE:
		return "unsafe"
	case msfparse.ESC_FAIL:
		return "fail"
	default:
		return "unset"
	}
}

// writeSnapshot appends one packed per-sample record: sample count,
// little endian, then the sample bits. tools/signalplot renders these.
func writeSnapshot(f *os.File, bi msfparse.BitInfo) {
	if bi.Signal == nil {
		return
	}
	n := uint32(bi.T)
	if err := binary.Write(f, binary.LittleEndian, n); err != nil {
		log.Printf("snapshot write: %s\n", err.Error())
		return
	}
	f.Write(bi.Signal[:(n+7)/8])
}

func run(configName, logName string, settime, sysfs bool, snapshotName string) int {
	timeStarted = time.Now()
	initLogging()

	log.Printf("nplpi %s (%s) starting.\n", nplpiVersion, nplpiBuild)
	globalStatus.Version = nplpiVersion

	hw, err := msfparse.ReadHardware(configName)
	if err != nil {
		errlog.Printf("%s: %s\n", configName, err.Error())
		return common.EX_DATAERR
	}

	var src msfparse.PulseSource
	if sysfs {
		src, err = msfparse.OpenSysfsPulse(hw)
	} else {
		src, err = msfparse.OpenRpioPulse(hw)
		if err != nil {
			log.Printf("gpiomem unavailable (%s), falling back to sysfs.\n",
				err.Error())
			src, err = msfparse.OpenSysfsPulse(hw)
		}
	}
	if err != nil {
		errlog.Printf("GPIO pin %d: %s\n", hw.Pin, err.Error())
		return 1
	}

	in := msfparse.NewLiveInput(hw, src)
	if logName != "" {
		if err := in.AppendLogfile(logName); err != nil {
			errlog.Printf("%s: %s\n", logName, err.Error())
			return 1
		}
	}

	var snapshotFile *os.File
	if snapshotName != "" {
		snapshotFile, err = os.OpenFile(snapshotName,
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("%s: %s, snapshots disabled.\n", snapshotName, err.Error())
		} else {
			defer snapshotFile.Close()
		}
	}

	if err := openDatalog(dataLogLocation); err != nil {
		log.Printf("datalog %s: %s, minute log disabled.\n",
			dataLogLocation, err.Error())
	}
	defer closeDatalog()

	prometheus.MustRegister(secondsSampled)
	prometheus.MustRegister(bitsTotal)
	prometheus.MustRegister(minutesTotal)
	prometheus.MustRegister(currentRealfreq)
	go managementInterface()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	hooks := makeHooks(in, settime, snapshotFile, sigChan)
	msfparse.Mainloop(in, msfparse.NewDecoder(), logName, hooks)

	return common.EX_OK
}

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage() (string, error) {
	logName := flag.String("log", "", "append received bits to this log file")
	settime := flag.Bool("settime", false, "set the system clock from the first clean minute")
	sysfs := flag.Bool("sysfs", false, "use the sysfs GPIO interface instead of /dev/gpiomem")
	snapshotName := flag.String("snapshot", "", "append per-sample signal snapshots to this file")
	flag.Parse()

	usage := "Usage: " + name + " [options] <config.json> | install | remove | start | stop | status"
	if flag.NArg() == 0 {
		return usage, fmt.Errorf("missing config file")
	}
	switch flag.Arg(0) {
	case "install":
		return service.Install()
	case "remove":
		return service.Remove()
	case "start":
		return service.Start()
	case "stop":
		return service.Stop()
	case "status":
		return service.Status()
	}

	os.Exit(run(flag.Arg(0), *logName, *settime, *sysfs, *snapshotName))
	return "", nil
}

func main() {
	stdlog = log.New(os.Stdout, "", log.Ldate|log.Ltime)
	errlog = log.New(os.Stderr, "", log.Ldate|log.Ltime)

	srv, err := daemon.New(name, description, daemon.SystemDaemon)
	if err != nil {
		errlog.Println("Error: ", err)
		os.Exit(1)
	}
	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		errlog.Println(status, "\nError: ", err)
		if err.Error() == "missing config file" {
			os.Exit(common.EX_USAGE)
		}
		os.Exit(1)
	}
	stdlog.Println(status)
}
