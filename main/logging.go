/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	logging.go: Duplicate log output to a debug log file, rotate it and
	delete old rotations when the disk fills up.
*/

package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ricochet2200/go-disk-usage/du"
)

const (
	logDirf      = "/var/log"
	debugLogFile = "nplpi.log"

	// keep at least this much space free before rotating in more logs
	minFreeSpace = 100 * 1024 * 1024

	logRotateSize  = 10 * 1024 * 1024
	logCheckPeriod = 60 * time.Second
)

var debugLogf = filepath.Join(logDirf, debugLogFile)
var logFileHandle *os.File

func getNplpiLogFiles() []string {
	entries, err := os.ReadDir(logDirf)
	nplpiLogs := make([]string, 0)
	if err != nil {
		return nplpiLogs
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), debugLogFile+".") {
			nplpiLogs = append(nplpiLogs, filepath.Join(logDirf, e.Name()))
		}
	}
	sort.Strings(nplpiLogs)
	return nplpiLogs
}

func rotateLogs() {
	nplpiLogs := getNplpiLogFiles()

	// rename suffix, remove if > 9
	for i := len(nplpiLogs) - 1; i >= 0; i-- {
		parts := strings.Split(nplpiLogs[i], ".")
		logNum, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			continue
		}
		newPath := filepath.Join(logDirf, debugLogFile+"."+strconv.Itoa(logNum+1))
		if logNum == 9 {
			os.Remove(nplpiLogs[i])
		} else {
			os.Rename(nplpiLogs[i], newPath)
		}
	}

	// Now rename current log file and re-open
	os.Rename(debugLogf, debugLogf+".1")
	openLogFile()
}

func deleteOldestLog() int64 {
	logs := getNplpiLogFiles()
	if len(logs) == 0 {
		return 0
	}
	oldest := logs[len(logs)-1]
	stat, err := os.Stat(oldest)
	if err != nil {
		return 0
	}
	if os.Remove(oldest) != nil {
		return 0
	}
	return stat.Size()
}

func logFileSize() int64 {
	if logFileHandle == nil {
		return 0
	}
	fileInfo, err := logFileHandle.Stat()
	if err != nil {
		return 0
	}
	return fileInfo.Size()
}

func openLogFile() {
	fp, err := os.OpenFile(debugLogf, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Failed to open '%s': %s\n", debugLogf, err.Error())
		return
	}
	if logFileHandle != nil {
		logFileHandle.Close()
	}
	logFileHandle = fp
	log.SetOutput(io.MultiWriter(fp, os.Stdout))
}

func logRotateWatcher() {
	for {
		time.Sleep(logCheckPeriod)
		usage := du.NewDiskUsage(logDirf)
		freed := uint64(0)
		for usage != nil && usage.Available()+freed < minFreeSpace {
			n := deleteOldestLog()
			if n == 0 {
				break
			}
			freed += uint64(n)
		}
		if logFileSize() > logRotateSize {
			rotateLogs()
		}
	}
}

func initLogging() {
	openLogFile()
	go logRotateWatcher()
}
