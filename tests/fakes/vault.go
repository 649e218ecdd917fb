package fakes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// VaultServer imitates the Key Vault secrets REST API.
type VaultServer struct {
	*httptest.Server

	mu          sync.Mutex
	token       string
	secrets     map[string]string
	statuses    map[string]int
	apiVersions []string
	requested   []string
}

// NewVaultServer starts a vault accepting only the given bearer token.
func NewVaultServer(token string, secrets map[string]string) *VaultServer {
	v := &VaultServer{
		token:    token,
		secrets:  make(map[string]string, len(secrets)),
		statuses: make(map[string]int),
	}
	for k, val := range secrets {
		v.secrets[k] = val
	}
	v.Server = httptest.NewServer(http.HandlerFunc(v.handle))
	return v
}

// SetStatus makes requests for key answer with status.
func (v *VaultServer) SetStatus(key string, status int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses[key] = status
}

// Requested lists the secret names requested so far.
func (v *VaultServer) Requested() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.requested...)
}

// APIVersions lists the api-version query values seen so far.
func (v *VaultServer) APIVersions() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.apiVersions...)
}

func (v *VaultServer) handle(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	name, ok := strings.CutPrefix(r.URL.Path, "/secrets/")
	if !ok || r.Method != http.MethodGet {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	name = strings.TrimSuffix(name, "/")
	v.requested = append(v.requested, name)
	v.apiVersions = append(v.apiVersions, r.URL.Query().Get("api-version"))

	if r.Header.Get("Authorization") != "Bearer "+v.token {
		w.Header().Set("WWW-Authenticate", `Bearer authorization="https://login.microsoftonline.com/tenant", resource="https://vault.azure.net"`)
		http.Error(w, `{"error":{"code":"Unauthorized"}}`, http.StatusUnauthorized)
		return
	}
	if status, ok := v.statuses[name]; ok {
		http.Error(w, `{"error":{"code":"Forbidden"}}`, status)
		return
	}
	value, ok := v.secrets[name]
	if !ok {
		http.Error(w, `{"error":{"code":"SecretNotFound"}}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"value": value,
		"id":    v.URL + "/secrets/" + name + "/0123456789abcdef",
		"attributes": map[string]any{
			"enabled": true,
		},
	})
}
