// Package mock implements the two demo workloads deployed to the virtual
// nodes: the FSM mock and the SCS mock. The services exchange "muffins"
// and "scones" over plain HTTP, which exercises exactly the node-to-node
// paths the virtual network isolation is supposed to allow.
package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// Default payloads before anyone has fed the services
const (
	DefaultMuffin = "I don't have a muffin, please give me one..."
	DefaultScone  = "I don't have a scone, please give me one..."
)

// DefaultPort is where the mocks listen unless told otherwise
const DefaultPort = 5000

// httpClient is shared by both mocks for their cross-service calls
var httpClient = &http.Client{Timeout: 15 * time.Second}

// remoteIP strips the port from the peer address. The FSM keys its SCS
// registry by this value, matching what the SCS sees as its own address
// on the shared network.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, body)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func readBody(r *http.Request) (string, error) {
	return readAll(r.Body)
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// logRequests logs each request the way the status server does
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s (%v)", r.Method, r.URL.Path, remoteIP(r), time.Since(start))
	})
}

// recoverPanics keeps one bad request from taking the mock down
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic handling %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
