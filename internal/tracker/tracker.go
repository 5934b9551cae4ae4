// Package tracker turns user intents into remote store calls and state
// transitions: fetch, add, optimistic edit, and view parameter changes.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"booklist/internal/models"
	"booklist/internal/notify"
	"booklist/internal/state"
	"booklist/internal/storage"
	"booklist/internal/view"
)

// ErrUnknownBook is returned when an edit targets an id that is not loaded
var ErrUnknownBook = errors.New("book is not in the list")

// Options tune the derived view
type Options struct {
	PageSize int
	Locale   language.Tag
}

// Tracker is the single entry point the presentation layer calls
type Tracker struct {
	store    *state.Store
	db       storage.Storage
	notifier notify.Notifier
	validate *validator.Validate
	opts     Options
	logger   *zap.Logger
}

// New creates a Tracker. A nil notifier disables notifications.
func New(store *state.Store, db storage.Storage, notifier notify.Notifier, opts Options, logger *zap.Logger) *Tracker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = view.DefaultPageSize
	}
	return &Tracker{
		store:    store,
		db:       db,
		notifier: notifier,
		validate: newValidator(),
		opts:     opts,
		logger:   logger,
	}
}

// State returns the current state snapshot
func (t *Tracker) State() state.State {
	return t.store.State()
}

// View derives the requested page from the current state
func (t *Tracker) View(page int) view.Page {
	st := t.store.State()
	return view.Derive(st.Books, view.Query{
		Search:        st.QueryString,
		SortField:     st.SortField,
		SortDirection: st.SortDirection,
		Page:          page,
		PageSize:      t.opts.PageSize,
		Locale:        t.opts.Locale,
	})
}

// Fetch reloads the whole list using the current sort and query
func (t *Tracker) Fetch(ctx context.Context) error {
	st, err := t.store.Dispatch(ctx, state.FetchBook{})
	if err != nil {
		return err
	}

	// the load finishes even if the caller goes away mid-request, so the
	// banner never reports the caller's own cancellation
	commit := context.WithoutCancel(ctx)

	records, err := t.db.List(commit, storage.ListQuery{
		SortField:     st.SortField,
		SortDirection: st.SortDirection,
		Search:        st.QueryString,
	})
	if err != nil {
		t.logger.Error("Failed to fetch books",
			zap.Error(err),
			zap.String("sort_field", st.SortField),
			zap.String("sort_direction", st.SortDirection),
			zap.String("query", st.QueryString),
		)
		_, _ = t.store.Dispatch(commit, state.SetLoadError{Err: err})
		return err
	}

	if _, err := t.store.Dispatch(commit, state.LoadBook{Records: records}); err != nil {
		return err
	}
	t.logger.Info("Books loaded", zap.Int("count", len(records)))
	return nil
}

// Add validates the form, creates the record and prepends it to the list.
// On a store failure the error is reported in state and returned; the
// caller keeps the entered form values.
func (t *Tracker) Add(ctx context.Context, in NewBook) (models.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if err := t.validate.Struct(in); err != nil {
		return models.Book{}, toValidationError(err)
	}

	if _, err := t.store.Dispatch(ctx, state.StartRequest{}); err != nil {
		return models.Book{}, err
	}
	commit := context.WithoutCancel(ctx)
	defer func() {
		_, _ = t.store.Dispatch(commit, state.EndRequest{})
	}()
	_, _ = t.store.Dispatch(commit, state.ClearError{})

	rec, err := t.db.Create(ctx, models.Fields{
		Title:       in.Title,
		Author:      in.Author,
		About:       in.About,
		Like:        in.Like,
		IsCompleted: false,
		Rating:      models.DefaultRating,
	})
	if err != nil {
		t.logger.Error("Failed to add book", zap.Error(err), zap.String("title", in.Title))
		_, _ = t.store.Dispatch(commit, state.SetLoadError{Err: err})
		return models.Book{}, err
	}

	if _, err := t.store.Dispatch(commit, state.AddBook{Record: rec}); err != nil {
		return models.Book{}, err
	}
	t.logger.Info("Book added", zap.String("book_id", rec.ID), zap.String("title", in.Title))
	return models.Normalize(rec), nil
}

// Update applies edited locally, writes it, then commits the store's copy or
// restores the pre-edit record. Responses older than the latest edit of the
// same book are discarded.
func (t *Tracker) Update(ctx context.Context, edited models.Book) (models.Book, error) {
	original, ok := t.store.State().Find(edited.ID)
	if !ok {
		return models.Book{}, ErrUnknownBook
	}

	edited.Title = strings.TrimSpace(edited.Title)
	edited.Author = strings.TrimSpace(edited.Author)
	if err := t.validate.Struct(bookEdit{Title: edited.Title, Author: edited.Author, Rating: edited.Rating}); err != nil {
		return models.Book{}, toValidationError(err)
	}
	edited.CreatedTime = original.CreatedTime

	st, err := t.store.Dispatch(ctx, state.BeginEdit{Book: edited})
	if err != nil {
		return models.Book{}, err
	}
	rev := st.Revision(edited.ID)
	commit := context.WithoutCancel(ctx)

	rec, err := t.db.Update(ctx, edited.ID, edited.EditableFields())
	if err != nil {
		t.logger.Error("Failed to update book, reverting",
			zap.Error(err),
			zap.String("book_id", edited.ID),
			zap.Uint64("revision", rev),
		)
		_, _ = t.store.Dispatch(commit, state.RevertBook{Book: original, Err: err, Rev: rev})
		return original, err
	}

	saved := models.Normalize(rec)
	if saved.CreatedTime == "" {
		saved.CreatedTime = original.CreatedTime
	}
	after, err := t.store.Dispatch(commit, state.UpdateBook{Book: saved, Rev: rev})
	if err != nil {
		return saved, err
	}
	if latest := after.Revision(saved.ID); latest > rev {
		t.logger.Debug("Discarded stale update response",
			zap.String("book_id", saved.ID),
			zap.Uint64("revision", rev),
			zap.Uint64("latest", latest),
		)
		return saved, nil
	}

	if !original.IsCompleted && saved.IsCompleted {
		t.notifier.BookCompleted(commit, saved)
	}
	return saved, nil
}

// ToggleComplete flips the completion flag of book id
func (t *Tracker) ToggleComplete(ctx context.Context, id string) (models.Book, error) {
	book, ok := t.store.State().Find(id)
	if !ok {
		return models.Book{}, ErrUnknownBook
	}
	book.IsCompleted = !book.IsCompleted
	return t.Update(ctx, book)
}

// Rate sets a 1-5 star rating on book id
func (t *Tracker) Rate(ctx context.Context, id string, rating int) (models.Book, error) {
	if rating < 1 || rating > models.MaxRating {
		return models.Book{}, &ValidationError{Fields: map[string]string{
			"rating": fmt.Sprintf("rating must be between 1 and %d", models.MaxRating),
		}}
	}
	book, ok := t.store.State().Find(id)
	if !ok {
		return models.Book{}, ErrUnknownBook
	}
	book.Rating = rating
	return t.Update(ctx, book)
}

// ViewParams are the sort and search selectors. Nil fields are left alone.
type ViewParams struct {
	SortField     *string
	SortDirection *string
	Query         *string
}

// SetView stores the given selectors and refetches if any of them changed
func (t *Tracker) SetView(ctx context.Context, p ViewParams) error {
	var check viewParams
	if p.SortField != nil {
		check.SortField = *p.SortField
		if check.SortField == "" {
			return &ValidationError{Fields: map[string]string{"sortField": "sortField is required"}}
		}
	}
	if p.SortDirection != nil {
		check.SortDirection = *p.SortDirection
		if check.SortDirection == "" {
			return &ValidationError{Fields: map[string]string{"sortDirection": "sortDirection is required"}}
		}
	}
	if err := t.validate.Struct(check); err != nil {
		return toValidationError(err)
	}

	st := t.store.State()
	var actions []state.Action
	if p.SortField != nil && *p.SortField != st.SortField {
		actions = append(actions, state.SetSortField{Value: *p.SortField})
	}
	if p.SortDirection != nil && *p.SortDirection != st.SortDirection {
		actions = append(actions, state.SetSortDirection{Value: *p.SortDirection})
	}
	if p.Query != nil && *p.Query != st.QueryString {
		actions = append(actions, state.SetQueryString{Value: *p.Query})
	}
	if len(actions) == 0 {
		return nil
	}

	for _, a := range actions {
		if _, err := t.store.Dispatch(ctx, a); err != nil {
			return err
		}
	}
	return t.Fetch(ctx)
}

// SetSortField changes the sort key and refetches
func (t *Tracker) SetSortField(ctx context.Context, field string) error {
	return t.SetView(ctx, ViewParams{SortField: &field})
}

// SetSortDirection changes the sort direction and refetches
func (t *Tracker) SetSortDirection(ctx context.Context, direction string) error {
	return t.SetView(ctx, ViewParams{SortDirection: &direction})
}

// SetQuery changes the title search and refetches
func (t *Tracker) SetQuery(ctx context.Context, query string) error {
	return t.SetView(ctx, ViewParams{Query: &query})
}

// ClearError dismisses the current error message
func (t *Tracker) ClearError(ctx context.Context) error {
	_, err := t.store.Dispatch(ctx, state.ClearError{})
	return err
}
