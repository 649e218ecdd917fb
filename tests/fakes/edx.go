package fakes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
)

// EdXServer serves a fixed list of pages in the Open edX pagination shape.
// Pages are addressed by the "page" query parameter, starting at 1.
type EdXServer struct {
	*httptest.Server

	mu       sync.Mutex
	pages    [][]map[string]any
	failures map[int][]int
	requests []*url.URL
	headers  []http.Header
}

// NewEdXServer starts a source serving pages in order.
func NewEdXServer(pages ...[]map[string]any) *EdXServer {
	e := &EdXServer{pages: pages, failures: make(map[int][]int)}
	e.Server = httptest.NewServer(http.HandlerFunc(e.handle))
	return e
}

// CatalogURL is the first page of the course listing.
func (e *EdXServer) CatalogURL() string {
	return e.URL + "/api/courses/v1/courses/?page_size=2"
}

// GradesURL is the first page of the gradebook listing.
func (e *EdXServer) GradesURL() string {
	return e.URL + "/api/grades/v1/gradebook/?page_size=2"
}

// FailPage makes the next requests for page answer with the given statuses, one per request.
func (e *EdXServer) FailPage(page int, statuses ...int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[page] = append(e.failures[page], statuses...)
}

// Requests returns every URL requested so far.
func (e *EdXServer) Requests() []*url.URL {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*url.URL(nil), e.requests...)
}

// Headers returns the headers of every request so far.
func (e *EdXServer) Headers() []http.Header {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]http.Header(nil), e.headers...)
}

func (e *EdXServer) handle(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u := *r.URL
	e.requests = append(e.requests, &u)
	e.headers = append(e.headers, r.Header.Clone())

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		page = n
	}
	if queued := e.failures[page]; len(queued) > 0 {
		e.failures[page] = queued[1:]
		http.Error(w, "upstream failure", queued[0])
		return
	}
	if page > len(e.pages) {
		http.Error(w, `{"detail":"Invalid page."}`, http.StatusNotFound)
		return
	}

	next := ""
	if page < len(e.pages) {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page+1))
		next = fmt.Sprintf("%s%s?%s", e.URL, r.URL.Path, q.Encode())
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"results": e.pages[page-1],
		"pagination": map[string]any{
			"next":     next,
			"previous": nil,
			"count":    len(e.pages[page-1]),
		},
	})
}
