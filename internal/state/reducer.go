// Package state holds the in-memory book list and UI state, and the pure
// reducer that is the only way either changes.
package state

import (
	"maps"

	"booklist/internal/models"
)

// State is treated as immutable: Reduce never modifies its input, it returns
// a new value whose slices and maps are fresh copies where they changed.
type State struct {
	Books         []models.Book     `json:"bookList"`
	SortField     string            `json:"sortField"`
	SortDirection string            `json:"sortDirection"`
	QueryString   string            `json:"queryString"`
	IsLoading     bool              `json:"isLoading"`
	IsSaving      bool              `json:"isSaving"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
	Revisions     map[string]uint64 `json:"-"`

	// editSeq is the last revision handed out. Revisions are unique across
	// ids so a pruned id that comes back never reuses an old number.
	editSeq uint64
}

// Initial returns the state the page starts with
func Initial() State {
	return State{
		Books:         []models.Book{},
		SortField:     models.SortCreatedTime,
		SortDirection: models.SortAsc,
	}
}

// HasError reports whether an error message is pending
func (s State) HasError() bool {
	return s.ErrorMessage != ""
}

// Find returns the book with the given id
func (s State) Find(id string) (models.Book, bool) {
	for _, b := range s.Books {
		if b.ID == id {
			return b, true
		}
	}
	return models.Book{}, false
}

// Revision returns the latest edit revision known for id
func (s State) Revision(id string) uint64 {
	return s.Revisions[id]
}

// Action is a discrete event applied by Reduce
type Action interface {
	actionName() string
}

type (
	// FetchBook marks the start of a list load
	FetchBook struct{}

	// LoadBook replaces the list with the normalized records
	LoadBook struct{ Records []models.Record }

	// SetLoadError stops loading and saving and reports Err
	SetLoadError struct{ Err error }

	// StartRequest marks a create request in flight
	StartRequest struct{}

	// EndRequest clears the in-flight create flag
	EndRequest struct{}

	// AddBook normalizes Record and prepends it
	AddBook struct{ Record models.Record }

	// BeginEdit applies Book locally before the remote write and bumps
	// the revision for its id
	BeginEdit struct{ Book models.Book }

	// UpdateBook commits a confirmed edit. Rev 0 always applies.
	UpdateBook struct {
		Book models.Book
		Rev  uint64
	}

	// RevertBook restores Book after a failed write and reports Err
	RevertBook struct {
		Book models.Book
		Err  error
		Rev  uint64
	}

	// ClearError dismisses the error message
	ClearError struct{}

	SetSortField     struct{ Value string }
	SetSortDirection struct{ Value string }
	SetQueryString   struct{ Value string }
)

func (FetchBook) actionName() string        { return "fetchBook" }
func (LoadBook) actionName() string         { return "loadBook" }
func (SetLoadError) actionName() string     { return "setLoadError" }
func (StartRequest) actionName() string     { return "startRequest" }
func (EndRequest) actionName() string       { return "endRequest" }
func (AddBook) actionName() string          { return "addBook" }
func (BeginEdit) actionName() string        { return "beginEdit" }
func (UpdateBook) actionName() string       { return "updateBook" }
func (RevertBook) actionName() string       { return "revertBook" }
func (ClearError) actionName() string       { return "clearError" }
func (SetSortField) actionName() string     { return "setSortField" }
func (SetSortDirection) actionName() string { return "setSortDirection" }
func (SetQueryString) actionName() string   { return "setQueryString" }

// Name returns the action's wire name, used for logging
func Name(a Action) string {
	if a == nil {
		return "<nil>"
	}
	return a.actionName()
}

// Reduce applies a to s. It never panics; unknown actions return s unchanged.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case FetchBook:
		s.IsLoading = true
		s.ErrorMessage = ""
		return s

	case LoadBook:
		books := make([]models.Book, 0, len(act.Records))
		for _, r := range act.Records {
			books = append(books, models.Normalize(r))
		}
		s.Books = dedupe(books)
		s.Revisions = pruneRevisions(s.Revisions, s.Books)
		s.IsLoading = false
		s.ErrorMessage = ""
		return s

	case SetLoadError:
		s.IsLoading = false
		s.IsSaving = false
		s.ErrorMessage = errorMessage(act.Err)
		return s

	case StartRequest:
		s.IsSaving = true
		return s

	case EndRequest:
		s.IsSaving = false
		return s

	case AddBook:
		saved := models.Normalize(act.Record)
		books := make([]models.Book, 0, len(s.Books)+1)
		books = append(books, saved)
		for _, b := range s.Books {
			if b.ID != saved.ID {
				books = append(books, b)
			}
		}
		s.Books = books
		s.IsSaving = false
		return s

	case BeginEdit:
		if _, ok := s.Find(act.Book.ID); !ok {
			return s
		}
		revs := maps.Clone(s.Revisions)
		if revs == nil {
			revs = make(map[string]uint64)
		}
		s.editSeq++
		revs[act.Book.ID] = s.editSeq
		s.Revisions = revs
		s.Books = replace(s.Books, act.Book)
		return s

	case UpdateBook:
		if act.Rev != 0 && act.Rev < s.Revision(act.Book.ID) {
			return s
		}
		s.Books = replace(s.Books, act.Book)
		s.IsSaving = false
		return s

	case RevertBook:
		if act.Rev == 0 || act.Rev >= s.Revision(act.Book.ID) {
			s.Books = replace(s.Books, act.Book)
		}
		s.IsSaving = false
		if act.Err != nil {
			s.ErrorMessage = errorMessage(act.Err)
		}
		return s

	case ClearError:
		s.ErrorMessage = ""
		return s

	case SetSortField:
		s.SortField = act.Value
		return s

	case SetSortDirection:
		s.SortDirection = act.Value
		return s

	case SetQueryString:
		s.QueryString = act.Value
		return s

	default:
		return s
	}
}

// replace returns a copy of books with the entry matching b.ID swapped for b.
// When no entry matches, books is returned as is.
func replace(books []models.Book, b models.Book) []models.Book {
	idx := -1
	for i := range books {
		if books[i].ID == b.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return books
	}
	out := make([]models.Book, len(books))
	copy(out, books)
	out[idx] = b
	return out
}

// pruneRevisions drops revisions of ids that are no longer listed. A late
// response for a dropped id finds no book to replace either way.
func pruneRevisions(revs map[string]uint64, books []models.Book) map[string]uint64 {
	if len(revs) == 0 {
		return revs
	}
	listed := make(map[string]struct{}, len(books))
	for _, b := range books {
		listed[b.ID] = struct{}{}
	}
	out := make(map[string]uint64, len(revs))
	for id, rev := range revs {
		if _, ok := listed[id]; ok {
			out[id] = rev
		}
	}
	return out
}

// dedupe keeps the first occurrence of every id
func dedupe(books []models.Book) []models.Book {
	seen := make(map[string]struct{}, len(books))
	out := books[:0]
	for _, b := range books {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
