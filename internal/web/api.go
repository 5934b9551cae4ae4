package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"booklist/internal/tracker"
)

// BookPatch is the PATCH /api/books/{id} body. Absent fields keep their
// current value.
type BookPatch struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	About       *string `json:"about"`
	Like        *string `json:"like"`
	IsCompleted *bool   `json:"isCompleted"`
	Rating      *int    `json:"rating"`
}

func (hs *HTTPServer) handleAPIList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hs.tracker.View(pageParam(r.URL.Query().Get("page"))))
}

func (hs *HTTPServer) handleAPIState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hs.tracker.State())
}

func (hs *HTTPServer) handleAPIAdd(w http.ResponseWriter, r *http.Request) {
	var in tracker.NewBook
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		hs.logger.Warn("Failed to decode request body",
			zap.Error(err),
			zap.String("request_id", requestID(r.Context())),
		)
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	book, err := hs.tracker.Add(r.Context(), in)
	if err != nil {
		hs.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (hs *HTTPServer) handleAPIPatch(w http.ResponseWriter, r *http.Request) {
	var patch BookPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	book, ok := hs.tracker.State().Find(r.PathValue("id"))
	if !ok {
		hs.apiError(w, r, tracker.ErrUnknownBook)
		return
	}
	if patch.Title != nil {
		book.Title = *patch.Title
	}
	if patch.Author != nil {
		book.Author = *patch.Author
	}
	if patch.About != nil {
		book.About = *patch.About
	}
	if patch.Like != nil {
		book.Like = *patch.Like
	}
	if patch.IsCompleted != nil {
		book.IsCompleted = *patch.IsCompleted
	}
	if patch.Rating != nil {
		book.Rating = *patch.Rating
	}

	saved, err := hs.tracker.Update(r.Context(), book)
	if err != nil {
		hs.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (hs *HTTPServer) apiError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var ve *tracker.ValidationError
	if errors.As(err, &ve) {
		writeError(w, status, ve.Error(), ve.Fields)
		return
	}

	if status >= http.StatusInternalServerError {
		hs.logger.Error("Request failed",
			zap.Error(err),
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
		)
	}
	writeError(w, status, err.Error(), nil)
}
