// Package web serves the book list page and its JSON API
package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"booklist/internal/models"
	"booklist/internal/state"
	"booklist/internal/tracker"
	"booklist/internal/view"
	assets "booklist/web"
)

// SearchDebounce is how long the page waits after the last keystroke
// before submitting the search box
const SearchDebounce = 300 * time.Millisecond

type option struct {
	Value string
	Label string
}

var (
	sortFields = []option{
		{models.SortCreatedTime, "Created Time"},
		{models.SortTitle, "Title"},
		{models.SortAuthor, "Author"},
		{models.SortRating, "Rating"},
	}
	sortDirections = []option{
		{models.SortAsc, "Ascending"},
		{models.SortDesc, "Descending"},
	}
)

// PageData is what the page template renders
type PageData struct {
	State          state.State
	Page           view.Page
	Form           tracker.NewBook
	FormErrors     map[string]string
	EditErrors     map[string]string
	EditID         string
	SortFields     []option
	SortDirections []option
	DebounceMillis int64
}

// HTTPServer handles page and API requests
type HTTPServer struct {
	tracker *tracker.Tracker
	tmpl    *template.Template
	logger  *zap.Logger
}

// NewHTTPServer parses the embedded page template
func NewHTTPServer(t *tracker.Tracker, logger *zap.Logger) (*HTTPServer, error) {
	tmpl, err := template.New("index.html.tmpl").Funcs(template.FuncMap{
		"stars": func() []int {
			out := make([]int, models.MaxRating)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
		"formatDate": formatDate,
		"add":        func(delta, n int) int { return n + delta },
	}).ParseFS(assets.Content, "index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	return &HTTPServer{tracker: t, tmpl: tmpl, logger: logger}, nil
}

// RegisterRoutes registers page and API routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", hs.handleIndex)
	mux.HandleFunc("GET /search", hs.handleSearch)
	mux.HandleFunc("POST /books", hs.handleAdd)
	mux.HandleFunc("POST /books/{id}", hs.handleEdit)
	mux.HandleFunc("POST /books/{id}/complete", hs.handleComplete)
	mux.HandleFunc("POST /books/{id}/rating", hs.handleRate)
	mux.HandleFunc("POST /errors/dismiss", hs.handleDismiss)

	mux.HandleFunc("GET /api/books", hs.handleAPIList)
	mux.HandleFunc("POST /api/books", hs.handleAPIAdd)
	mux.HandleFunc("PATCH /api/books/{id}", hs.handleAPIPatch)
	mux.HandleFunc("GET /api/state", hs.handleAPIState)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
}

// Handler wraps a fresh mux with the request middleware
func (hs *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	hs.RegisterRoutes(mux)
	return hs.withRequestLogging(hs.withRecover(mux))
}

func (hs *HTTPServer) pageData(page int) PageData {
	return PageData{
		State:          hs.tracker.State(),
		Page:           hs.tracker.View(page),
		SortFields:     sortFields,
		SortDirections: sortDirections,
		DebounceMillis: SearchDebounce.Milliseconds(),
	}
}

func (hs *HTTPServer) render(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	var buf bytes.Buffer
	if err := hs.tmpl.Execute(&buf, data); err != nil {
		hs.logger.Error("Failed to render page",
			zap.Error(err),
			zap.String("request_id", requestID(r.Context())),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (hs *HTTPServer) redirectToPage(w http.ResponseWriter, r *http.Request, page int) {
	http.Redirect(w, r, "/?page="+strconv.Itoa(page), http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	writeJSON(w, status, errorBody{Error: msg, Fields: fields})
}

// pageParam reads a 1-based page number. Anything unparsable means page 1;
// out-of-range values are clamped by the view.
func pageParam(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 1
	}
	return n
}

func formatDate(createdTime string) string {
	t, err := time.Parse(time.RFC3339Nano, createdTime)
	if err != nil {
		return createdTime
	}
	return t.Format("Jan 2, 2006")
}
