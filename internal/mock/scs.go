package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// FSMInfo is what the SCS keeps about the FSM it is connected to
type FSMInfo struct {
	IP     string `json:"ip"`
	Port   string `json:"port"`
	Muffin string `json:"muffin,omitempty"`
}

// SCS is the mock System Configuration Service. It holds a scone and can
// be pointed at an FSM: connecting registers this SCS in the FSM's
// registry and fetches the FSM's muffin.
type SCS struct {
	mu    sync.Mutex
	scone string
	fsm   *FSMInfo

	// port is what the SCS reports about itself when registering
	port int
}

// NewSCS creates an SCS mock listening on the given port
func NewSCS(port int) *SCS {
	return &SCS{scone: DefaultScone, port: port}
}

// Routes returns the SCS's HTTP handler
func (s *SCS) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /scone", s.handleGetScone)
	mux.HandleFunc("POST /scone", s.handleGiveScone)

	mux.HandleFunc("GET /fsm", s.handleGetFSM)
	mux.HandleFunc("POST /fsm", s.handleConnectFSM)
	mux.HandleFunc("DELETE /fsm", s.handleDisconnectFSM)

	return recoverPanics(logRequests(mux))
}

func (s *SCS) handleGetScone(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	scone := s.scone
	s.mu.Unlock()
	writeText(w, scone)
}

func (s *SCS) handleGiveScone(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "read scone: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.scone = body
	s.mu.Unlock()
	writeText(w, body)
}

// handleGetFSM refreshes the muffin from the connected FSM and returns
// what the SCS knows about it. Reports null when no FSM is connected.
func (s *SCS) handleGetFSM(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fsm := s.fsm
	s.mu.Unlock()

	if fsm == nil {
		writeJSON(w, nil)
		return
	}

	muffin, err := s.fetchMuffin(fsm)
	if err != nil {
		writeText(w, fmt.Sprintf("Getting muffin from FSM FAILED: %v", err))
		return
	}

	s.mu.Lock()
	if s.fsm != nil {
		s.fsm.Muffin = muffin
		fsm = s.fsm
	}
	s.mu.Unlock()
	writeJSON(w, fsm)
}

// handleConnectFSM registers this SCS with the FSM named in the request
// body and pulls the FSM's muffin
func (s *SCS) handleConnectFSM(w http.ResponseWriter, r *http.Request) {
	var info FSMInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, "decode fsm info: "+err.Error(), http.StatusBadRequest)
		return
	}
	if info.IP == "" || info.Port == "" {
		http.Error(w, "fsm info needs both ip and port", http.StatusBadRequest)
		return
	}

	if err := s.register(&info); err != nil {
		writeText(w, fmt.Sprintf("Register with FSM FAILED: %v", err))
		return
	}

	muffin, err := s.fetchMuffin(&info)
	if err != nil {
		writeText(w, fmt.Sprintf("Getting muffin from FSM FAILED: %v", err))
		return
	}
	info.Muffin = muffin

	s.mu.Lock()
	s.fsm = &info
	s.mu.Unlock()
	writeJSON(w, info)
}

// handleDisconnectFSM removes this SCS from the FSM's registry and
// forgets the FSM
func (s *SCS) handleDisconnectFSM(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fsm := s.fsm
	s.mu.Unlock()

	if fsm == nil {
		writeJSON(w, nil)
		return
	}

	url := fmt.Sprintf("http://%s:%s/scs_list", fsm.IP, fsm.Port)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodDelete, url, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		writeText(w, fmt.Sprintf("Unregister with FSM FAILED: %v", err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writeText(w, fmt.Sprintf("Unregister with FSM FAILED: %s", resp.Status))
		return
	}

	s.mu.Lock()
	s.fsm = nil
	s.mu.Unlock()
	writeJSON(w, fsm)
}

// register posts this SCS's port to the FSM's registry
func (s *SCS) register(fsm *FSMInfo) error {
	payload, err := json.Marshal(map[string]string{"port": fmt.Sprint(s.port)})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%s/scs_list", fsm.IP, fsm.Port)
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// fetchMuffin gets the FSM's current muffin
func (s *SCS) fetchMuffin(fsm *FSMInfo) (string, error) {
	url := fmt.Sprintf("http://%s:%s/muffin", fsm.IP, fsm.Port)
	resp, err := httpClient.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return readAll(resp.Body)
}
