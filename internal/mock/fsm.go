package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// SCSEntry is what the FSM knows about one registered SCS. Registration
// carries at least the port; the FSM fills in the scone on reads.
type SCSEntry map[string]interface{}

// FSM is the mock Flawless Service Manager. It holds a muffin, keeps a
// registry of the SCSes that have registered with it, and pulls a fresh
// scone from each of them whenever the registry is read.
type FSM struct {
	mu     sync.Mutex
	muffin string
	scsMap map[string]SCSEntry
}

// NewFSM creates an FSM mock with an empty registry
func NewFSM() *FSM {
	return &FSM{
		muffin: DefaultMuffin,
		scsMap: make(map[string]SCSEntry),
	}
}

// Routes returns the FSM's HTTP handler
func (f *FSM) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /muffin", f.handleGetMuffin)
	mux.HandleFunc("POST /muffin", f.handleGiveMuffin)

	mux.HandleFunc("GET /scs_list", f.handleListSCS)
	mux.HandleFunc("POST /scs_list", f.handleRegisterSCS)
	mux.HandleFunc("DELETE /scs_list", f.handleUnregisterSCS)

	mux.HandleFunc("GET /scs_list/{id}", f.handleGetSCS)
	mux.HandleFunc("DELETE /scs_list/{id}", f.handleDeleteSCS)

	return recoverPanics(logRequests(mux))
}

func (f *FSM) handleGetMuffin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	muffin := f.muffin
	f.mu.Unlock()
	writeText(w, muffin)
}

func (f *FSM) handleGiveMuffin(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "read muffin: "+err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.muffin = body
	f.mu.Unlock()
	writeText(w, body)
}

func (f *FSM) handleListSCS(w http.ResponseWriter, r *http.Request) {
	f.refreshScones()
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, f.scsMap)
}

func (f *FSM) handleRegisterSCS(w http.ResponseWriter, r *http.Request) {
	var entry SCSEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "decode registration: "+err.Error(), http.StatusBadRequest)
		return
	}

	id := remoteIP(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scsMap[id] = entry
	writeJSON(w, f.scsMap)
}

func (f *FSM) handleUnregisterSCS(w http.ResponseWriter, r *http.Request) {
	f.deleteSCS(w, remoteIP(r))
}

func (f *FSM) handleGetSCS(w http.ResponseWriter, r *http.Request) {
	f.refreshScones()

	id := r.PathValue("id")
	f.mu.Lock()
	entry, ok := f.scsMap[id]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, entry)
}

func (f *FSM) handleDeleteSCS(w http.ResponseWriter, r *http.Request) {
	f.deleteSCS(w, r.PathValue("id"))
}

func (f *FSM) deleteSCS(w http.ResponseWriter, id string) {
	f.mu.Lock()
	entry, ok := f.scsMap[id]
	delete(f.scsMap, id)
	f.mu.Unlock()

	if !ok {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, entry)
}

// refreshScones pulls the current scone from every registered SCS. A
// failed pull is recorded in the entry rather than failing the request,
// so an isolation break shows up in the payload.
func (f *FSM) refreshScones() {
	f.mu.Lock()
	targets := make(map[string]string, len(f.scsMap))
	for ip, entry := range f.scsMap {
		targets[ip] = fmt.Sprint(entry["port"])
	}
	f.mu.Unlock()

	for ip, port := range targets {
		scone := retrieveScone(ip, port)
		f.mu.Lock()
		if entry, ok := f.scsMap[ip]; ok {
			entry["scone"] = scone
		}
		f.mu.Unlock()
	}
}

// retrieveScone gets a scone from one SCS
func retrieveScone(ip, port string) string {
	url := fmt.Sprintf("http://%s:%s/scone", ip, port)
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Sprintf("scone crumbled - %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("scone crumbled - %s", resp.Status)
	}
	body, err := readAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("scone crumbled - %v", err)
	}
	return body
}
