package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	rec := Record{
		ID:          "rec1",
		CreatedTime: "2024-03-01T10:00:00.000Z",
		Fields:      Fields{Title: "Dune", Author: "Herbert", Rating: 9},
	}

	book := Normalize(rec)

	assert.Equal(t, "rec1", book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Herbert", book.Author)
	assert.Equal(t, "", book.About)
	assert.Equal(t, "", book.Like)
	assert.False(t, book.IsCompleted)
	assert.Equal(t, MaxRating, book.Rating, "rating should be clamped")
	assert.Equal(t, "2024-03-01T10:00:00.000Z", book.CreatedTime)
}

func TestBook_Created(t *testing.T) {
	b := Book{CreatedTime: "2024-03-01T10:00:00.000Z"}
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), b.Created())

	b.CreatedTime = "not a time"
	assert.True(t, b.Created().IsZero())
}

func TestClampRating(t *testing.T) {
	testCases := []struct {
		in, want int
	}{
		{-1, 0},
		{0, 0},
		{3, 3},
		{5, 5},
		{6, 5},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ClampRating(tc.in), "ClampRating(%d)", tc.in)
	}
}

func TestSortValidation(t *testing.T) {
	for _, f := range []string{SortCreatedTime, SortTitle, SortAuthor, SortRating} {
		assert.True(t, IsSortField(f), f)
	}
	assert.False(t, IsSortField("newest"))
	assert.False(t, IsSortField(""))

	assert.True(t, IsSortDirection(SortAsc))
	assert.True(t, IsSortDirection(SortDesc))
	assert.False(t, IsSortDirection("up"))
}
