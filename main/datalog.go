/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	datalog.go: Log every decoded minute to a sqlite database for
	long-term reception quality analysis.
*/

package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/b3nn0/nplpi/msfparse"
	_ "github.com/mattn/go-sqlite3"
)

var dataLogDB *sql.DB

const minuteLogSchema = `
CREATE TABLE IF NOT EXISTS minute_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	logged_at TEXT,
	decoded_time TEXT,
	time_offset TEXT,
	minute_length INTEGER,
	minute_status INTEGER,
	hour_status INTEGER,
	mday_status INTEGER,
	wday_status INTEGER,
	month_status INTEGER,
	year_status INTEGER,
	dst_status INTEGER,
	leapsecond_status INTEGER,
	dst_announce INTEGER,
	bit0_ok INTEGER,
	bit52_ok INTEGER,
	bit59_ok INTEGER,
	acc_minlen INTEGER,
	cutoff INTEGER
)`

func openDatalog(location string) error {
	db, err := sql.Open("sqlite3", location)
	if err != nil {
		return err
	}
	if _, err := db.Exec(minuteLogSchema); err != nil {
		db.Close()
		return err
	}
	dataLogDB = db
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func logMinuteToDatalog(dt msfparse.DTResult, tm msfparse.BrokenDownTime,
	accMinlen uint, cutoff int) {
	if dataLogDB == nil {
		return
	}
	decoded := fmt.Sprintf("%04d-%02d-%02d %02d:%02d",
		tm.Year, tm.Mon, tm.Mday, tm.Hour, tm.Min)
	_, err := dataLogDB.Exec(`INSERT INTO minute_log (logged_at,
		decoded_time, time_offset, minute_length, minute_status, hour_status,
		mday_status, wday_status, month_status, year_status, dst_status,
		leapsecond_status, dst_announce, bit0_ok, bit52_ok, bit59_ok,
		acc_minlen, cutoff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), decoded,
		offsetName(tm.Isdst), dt.Minute_length, dt.Minute_status,
		dt.Hour_status, dt.Mday_status, dt.Wday_status, dt.Month_status,
		dt.Year_status, dt.Dst_status, dt.Leapsecond_status,
		boolToInt(dt.Dst_announce), boolToInt(dt.Bit0_ok),
		boolToInt(dt.Bit52_ok), boolToInt(dt.Bit59_ok), accMinlen, cutoff)
	if err != nil {
		log.Printf("datalog insert: %s\n", err.Error())
	}
}

func closeDatalog() {
	if dataLogDB != nil {
		dataLogDB.Close()
		dataLogDB = nil
	}
}
