package models

import "time"

// Sort fields accepted by the list query and the derived view
const (
	SortCreatedTime = "createdTime"
	SortTitle       = "title"
	SortAuthor      = "author"
	SortRating      = "rating"
)

// Sort directions
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Rating bounds. New books start at DefaultRating.
const (
	MinRating     = 0
	MaxRating     = 5
	DefaultRating = 0
)

// Book is the flat, normalized shape held in memory
type Book struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	About       string `json:"about"`
	Like        string `json:"like"`
	IsCompleted bool   `json:"isCompleted"`
	Rating      int    `json:"rating"`
	CreatedTime string `json:"createdTime"`
}

// Fields is the editable field set sent to and returned by the remote store.
// A zero rating means unrated and is left out of the payload.
type Fields struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	About       string `json:"about"`
	Like        string `json:"like"`
	IsCompleted bool   `json:"isCompleted"`
	Rating      int    `json:"rating,omitempty"`
}

// Record is one row as returned by the remote store
type Record struct {
	ID          string `json:"id,omitempty"`
	CreatedTime string `json:"createdTime,omitempty"`
	Fields      Fields `json:"fields"`
}

// Normalize maps a store record into a Book. Missing optional fields are
// already zero; the rating is clamped into [MinRating, MaxRating].
func Normalize(r Record) Book {
	return Book{
		ID:          r.ID,
		Title:       r.Fields.Title,
		Author:      r.Fields.Author,
		About:       r.Fields.About,
		Like:        r.Fields.Like,
		IsCompleted: r.Fields.IsCompleted,
		Rating:      ClampRating(r.Fields.Rating),
		CreatedTime: r.CreatedTime,
	}
}

// EditableFields returns the fields of b that may be written back to the store
func (b Book) EditableFields() Fields {
	return Fields{
		Title:       b.Title,
		Author:      b.Author,
		About:       b.About,
		Like:        b.Like,
		IsCompleted: b.IsCompleted,
		Rating:      ClampRating(b.Rating),
	}
}

// Created parses CreatedTime. Unparseable or empty values yield the zero time.
func (b Book) Created() time.Time {
	t, err := time.Parse(time.RFC3339Nano, b.CreatedTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ClampRating forces r into the valid rating range
func ClampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// IsSortField reports whether f is a known sort field
func IsSortField(f string) bool {
	switch f {
	case SortCreatedTime, SortTitle, SortAuthor, SortRating:
		return true
	}
	return false
}

// IsSortDirection reports whether d is a known sort direction
func IsSortDirection(d string) bool {
	return d == SortAsc || d == SortDesc
}
