package fakes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MSIServer imitates the host-local managed identity token endpoint.
type MSIServer struct {
	*httptest.Server

	mu           sync.Mutex
	token        string
	expiresOn    time.Time
	status       int
	requests     int
	lastResource string
	lastMetadata string
}

// NewMSIServer starts an endpoint issuing token until expiresOn.
func NewMSIServer(token string, expiresOn time.Time) *MSIServer {
	m := &MSIServer{token: token, expiresOn: expiresOn}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Endpoint is the token URL to configure.
func (m *MSIServer) Endpoint() string {
	return m.URL + "/oauth2/token"
}

// FailWith makes every later request answer with status.
func (m *MSIServer) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Requests returns how many token requests were served.
func (m *MSIServer) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// LastRequest returns the resource form field and Metadata header of the last request.
func (m *MSIServer) LastRequest() (resource, metadata string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastResource, m.lastMetadata
}

func (m *MSIServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	if r.Method != http.MethodPost || r.URL.Path != "/oauth2/token" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	_ = r.ParseForm()
	m.lastResource = r.PostForm.Get("resource")
	m.lastMetadata = r.Header.Get("Metadata")

	if m.status != 0 && m.status != http.StatusOK {
		http.Error(w, `{"error":"invalid_request"}`, m.status)
		return
	}
	if m.lastMetadata != "true" {
		http.Error(w, `{"error":"invalid_request","error_description":"Required metadata header not specified"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token": m.token,
		"expires_on":   strconv.FormatInt(m.expiresOn.Unix(), 10),
		"resource":     m.lastResource,
		"token_type":   "Bearer",
	})
}
