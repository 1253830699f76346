// Package main runs a demo WebSocket client for solve progress events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Upload a tiny instance
	problem := []byte(`{"name":"demo","problem":{"customers":[
		{"id":0,"x":35,"y":35,"demand":0,"ready_time":0,"due_date":1000,"service_time":0},
		{"id":1,"x":41,"y":49,"demand":10,"ready_time":0,"due_date":900,"service_time":10},
		{"id":2,"x":35,"y":17,"demand":7,"ready_time":0,"due_date":900,"service_time":10}],
		"vehicles":[{"id":0,"capacity":200}],"depot":0}}`)
	resp, err := http.Post(base+"/v1/instances", "application/json", bytes.NewReader(problem))
	if err != nil {
		log.Fatal(err)
	}
	var inst struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&inst); err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("Instance ID: %s", inst.ID)

	// Kick off a solve in the background so there are events to watch
	solveDone := make(chan string, 1)
	go func() {
		body := []byte(fmt.Sprintf(`{"instanceId":%q}`, inst.ID))
		resp, err := http.Post(base+"/v1/solve", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		var out struct {
			SolveID string `json:"solveId"`
			Cost    int    `json:"cost"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			log.Fatal(err)
		}
		log.Printf("Solve %s finished, cost %d", out.SolveID, out.Cost)
		solveDone <- out.SolveID
	}()

	// List solves until one shows up, then attach to its event stream
	var solveID string
	for i := 0; i < 50 && solveID == ""; i++ {
		resp, err := http.Get(base + "/v1/solves?instanceId=" + inst.ID)
		if err != nil {
			log.Fatal(err)
		}
		var list struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&list)
		_ = resp.Body.Close()
		if len(list.Items) > 0 {
			solveID = list.Items[0].ID
		} else {
			time.Sleep(100 * time.Millisecond)
		}
	}
	if solveID == "" {
		log.Fatal("no solve appeared")
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/solves/" + solveID + "/events/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			log.Println("done waiting")
			return
		case id := <-solveDone:
			log.Printf("solve %s complete", id)
			return
		default:
		}
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		log.Printf("event: %s", msg)
	}
}
