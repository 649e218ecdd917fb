package fakes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// LandDServer records every batch posted to the destination API.
type LandDServer struct {
	*httptest.Server

	mu       sync.Mutex
	statuses []int
	batches  []json.RawMessage
	headers  []http.Header
	calls    int
}

// NewLandDServer starts a destination. Each call consumes the next status in
// statuses; once they run out every call succeeds.
func NewLandDServer(statuses ...int) *LandDServer {
	l := &LandDServer{statuses: statuses}
	l.Server = httptest.NewServer(http.HandlerFunc(l.handle))
	return l
}

// CatalogURL is the destination catalog endpoint.
func (l *LandDServer) CatalogURL() string {
	return l.URL + "/api/catalog"
}

// ConsumptionURL is the destination consumption endpoint.
func (l *LandDServer) ConsumptionURL() string {
	return l.URL + "/api/consumption"
}

// Calls returns the number of POSTs received, accepted or not.
func (l *LandDServer) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Batches returns the bodies of accepted POSTs in arrival order.
func (l *LandDServer) Batches() []json.RawMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]json.RawMessage(nil), l.batches...)
}

// Records decodes every accepted batch into one flat list.
func (l *LandDServer) Records() []map[string]any {
	var out []map[string]any
	for _, b := range l.Batches() {
		var recs []map[string]any
		if err := json.Unmarshal(b, &recs); err == nil {
			out = append(out, recs...)
		}
	}
	return out
}

// Headers returns the headers of every POST received.
func (l *LandDServer) Headers() []http.Header {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]http.Header(nil), l.headers...)
}

func (l *LandDServer) handle(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	l.calls++
	l.headers = append(l.headers, r.Header.Clone())
	body, _ := io.ReadAll(r.Body)

	if len(l.statuses) > 0 {
		status := l.statuses[0]
		l.statuses = l.statuses[1:]
		if status >= 300 {
			http.Error(w, `{"message":"rejected by fake"}`, status)
			return
		}
	}
	if !json.Valid(body) {
		http.Error(w, `{"message":"invalid json"}`, http.StatusBadRequest)
		return
	}

	l.batches = append(l.batches, json.RawMessage(body))
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"accepted"}`)
}
