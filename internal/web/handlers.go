package web

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"booklist/internal/models"
	"booklist/internal/state"
	"booklist/internal/tracker"
)

func (hs *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := hs.pageData(pageParam(q.Get("page")))
	data.EditID = q.Get("edit")
	hs.render(w, r, http.StatusOK, data)
}

// handleSearch applies whichever of q, sort and dir are present and goes
// back to the first page
func (hs *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var p tracker.ViewParams
	if q.Has("q") {
		v := q.Get("q")
		p.Query = &v
	}
	if q.Has("sort") {
		v := q.Get("sort")
		p.SortField = &v
	}
	if q.Has("dir") {
		v := q.Get("dir")
		p.SortDirection = &v
	}

	err := hs.tracker.SetView(r.Context(), p)
	var ve *tracker.ValidationError
	if errors.As(err, &ve) {
		http.Error(w, ve.Error(), http.StatusUnprocessableEntity)
		return
	}
	// fetch failures are already in state and show up in the banner
	hs.redirectToPage(w, r, 1)
}

func (hs *HTTPServer) handleAdd(w http.ResponseWriter, r *http.Request) {
	in := tracker.NewBook{
		Title:  r.PostFormValue("title"),
		Author: r.PostFormValue("author"),
		About:  r.PostFormValue("about"),
		Like:   r.PostFormValue("like"),
	}

	_, err := hs.tracker.Add(r.Context(), in)
	if err == nil {
		hs.redirectToPage(w, r, 1)
		return
	}

	// the form keeps what was typed whether validation or the store failed
	data := hs.pageData(1)
	data.Form = in
	status := http.StatusBadGateway
	var ve *tracker.ValidationError
	if errors.As(err, &ve) {
		data.FormErrors = ve.Fields
		status = http.StatusUnprocessableEntity
	}
	hs.render(w, r, status, data)
}

func (hs *HTTPServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	page := pageParam(r.PostFormValue("page"))

	book, ok := hs.tracker.State().Find(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	book.Title = r.PostFormValue("title")
	book.Author = r.PostFormValue("author")
	book.About = r.PostFormValue("about")
	book.Like = r.PostFormValue("like")

	_, err := hs.tracker.Update(r.Context(), book)
	var ve *tracker.ValidationError
	switch {
	case errors.As(err, &ve):
		data := hs.pageData(page)
		data.EditID = id
		data.EditErrors = ve.Fields
		// show the rejected values in the still-open edit form
		data.Page.Books = withBook(data.Page.Books, book)
		hs.render(w, r, http.StatusUnprocessableEntity, data)
	case errors.Is(err, tracker.ErrUnknownBook):
		http.NotFound(w, r)
	default:
		hs.redirectToPage(w, r, page)
	}
}

func (hs *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	_, err := hs.tracker.ToggleComplete(r.Context(), r.PathValue("id"))
	if errors.Is(err, tracker.ErrUnknownBook) {
		http.NotFound(w, r)
		return
	}
	hs.redirectToPage(w, r, pageParam(r.PostFormValue("page")))
}

func (hs *HTTPServer) handleRate(w http.ResponseWriter, r *http.Request) {
	rating, err := strconv.Atoi(r.PostFormValue("rating"))
	if err != nil {
		http.Error(w, "rating must be a number", http.StatusBadRequest)
		return
	}

	_, err = hs.tracker.Rate(r.Context(), r.PathValue("id"), rating)
	var ve *tracker.ValidationError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, tracker.ErrUnknownBook):
		http.NotFound(w, r)
	default:
		hs.redirectToPage(w, r, pageParam(r.PostFormValue("page")))
	}
}

func (hs *HTTPServer) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := hs.tracker.ClearError(r.Context()); err != nil {
		hs.logger.Error("Failed to clear error", zap.Error(err))
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	hs.redirectToPage(w, r, pageParam(r.PostFormValue("page")))
}

func withBook(books []models.Book, b models.Book) []models.Book {
	out := make([]models.Book, len(books))
	for i, cur := range books {
		if cur.ID == b.ID {
			cur = b
		}
		out[i] = cur
	}
	return out
}

// statusFor maps tracker and store errors onto API status codes
func statusFor(err error) int {
	var ve *tracker.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tracker.ErrUnknownBook):
		return http.StatusNotFound
	case errors.Is(err, state.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
