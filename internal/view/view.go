// Package view computes the visible slice of the book list: filter, then
// sort, then paginate. It holds no state of its own.
package view

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"booklist/internal/models"
)

// DefaultPageSize is the number of books shown per page
const DefaultPageSize = 10

// Query selects the visible page
type Query struct {
	Search        string
	SortField     string
	SortDirection string
	Page          int
	PageSize      int
	// Locale drives title and author collation. Zero means English.
	Locale language.Tag
}

// Page is the result of Derive
type Page struct {
	Books      []models.Book `json:"books"`
	Number     int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
}

// Numbers lists 1..TotalPages for the pagination controls
func (p Page) Numbers() []int {
	out := make([]int, p.TotalPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// HasPrev reports whether a previous page exists
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a next page exists
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// Derive returns the requested page of books. The input slice is not modified.
func Derive(books []models.Book, q Query) Page {
	filtered := Filter(books, q.Search)
	Sort(filtered, q.SortField, q.SortDirection, q.Locale)
	return Paginate(filtered, q.Page, q.PageSize)
}

// Filter returns a new slice with the books whose title contains search,
// ignoring case. An empty search matches everything.
func Filter(books []models.Book, search string) []models.Book {
	needle := strings.ToLower(search)
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		if needle == "" || strings.Contains(strings.ToLower(b.Title), needle) {
			out = append(out, b)
		}
	}
	return out
}

// Sort orders books in place. Title and author use locale collation and
// rating compares numerically, all honouring direction. Any other field,
// createdTime included, sorts newest first regardless of direction.
func Sort(books []models.Book, field, direction string, locale language.Tag) {
	desc := direction == models.SortDesc

	var cmp func(a, b models.Book) int
	switch field {
	case models.SortTitle, models.SortAuthor:
		if locale == language.Und {
			locale = language.English
		}
		col := collate.New(locale)
		key := func(b models.Book) string { return b.Title }
		if field == models.SortAuthor {
			key = func(b models.Book) string { return b.Author }
		}
		cmp = func(a, b models.Book) int {
			return col.CompareString(key(a), key(b))
		}
	case models.SortRating:
		cmp = func(a, b models.Book) int {
			return a.Rating - b.Rating
		}
	default:
		slices.SortStableFunc(books, func(a, b models.Book) int {
			return b.Created().Compare(a.Created())
		})
		return
	}

	if desc {
		slices.SortStableFunc(books, func(a, b models.Book) int { return cmp(b, a) })
		return
	}
	slices.SortStableFunc(books, cmp)
}

// Paginate clamps page into [1, TotalPages] and returns that page.
// TotalPages is at least 1 so an empty list still has a first page.
func Paginate(books []models.Book, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(books)
	pages := max(1, (total+size-1)/size)
	page = min(max(page, 1), pages)

	start := (page - 1) * size
	end := min(start+size, total)

	return Page{
		Books:      books[start:end],
		Number:     page,
		TotalPages: pages,
		Total:      total,
	}
}
