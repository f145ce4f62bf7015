/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	managementinterface.go: HTTP status surface of the receiver daemon:
	current status as JSON, a websocket pushing it once per second and
	the prometheus metrics endpoint.
*/

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// InfoMessage is what the websocket pushes: the status plus a humanized
// age of the last committed minute.
type InfoMessage struct {
	status
	LastCommittedAgo string
}

func snapshotStatus() InfoMessage {
	statusMutex.Lock()
	s := globalStatus
	s.UptimeSeconds = int64(time.Since(timeStarted).Seconds())
	statusMutex.Unlock()

	msg := InfoMessage{status: s}
	if !s.LastCommitted.IsZero() {
		msg.LastCommittedAgo = humanize.Time(s.LastCommitted)
	} else {
		msg.LastCommittedAgo = "never"
	}
	return msg
}

func statusSender(conn *websocket.Conn) {
	timer := time.NewTicker(1 * time.Second)
	defer timer.Stop()
	for {
		<-timer.C
		update, _ := json.Marshal(snapshotStatus())
		if _, err := conn.Write(update); err != nil {
			break
		}
	}
}

func handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	statusJSON, _ := json.Marshal(snapshotStatus())
	fmt.Fprintf(w, "%s\n", statusJSON)
}

func managementInterface() {
	http.HandleFunc("/control",
		func(w http.ResponseWriter, req *http.Request) {
			s := websocket.Server{
				Handler: websocket.Handler(func(conn *websocket.Conn) {
					statusSender(conn)
				})}
			s.ServeHTTP(w, req)
		})
	http.HandleFunc("/getStatus", handleStatusRequest)
	http.Handle("/metrics", promhttp.Handler())

	err := http.ListenAndServe(managementAddr, nil)
	if err != nil {
		log.Printf("managementInterface ListenAndServe: %s\n", err.Error())
	}
}
