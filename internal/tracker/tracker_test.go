package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booklist/internal/models"
	"booklist/internal/state"
	"booklist/internal/storage"
	"booklist/internal/storage/stubs"
)

type recordingNotifier struct {
	mu    sync.Mutex
	books []models.Book
}

func (n *recordingNotifier) BookCompleted(_ context.Context, b models.Book) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.books = append(n.books, b)
}

type fixture struct {
	tracker  *Tracker
	db       *stubs.MockDB
	notifier *recordingNotifier
}

func newFixture(t *testing.T, records ...models.Record) *fixture {
	t.Helper()
	db := stubs.NewMockDB()
	db.Seed(records...)
	store := state.NewStore(state.Initial(), zap.NewNop())
	t.Cleanup(store.Close)

	n := &recordingNotifier{}
	tr := New(store, db, n, Options{}, zap.NewNop())
	if len(records) > 0 {
		require.NoError(t, tr.Fetch(context.Background()))
	}
	return &fixture{tracker: tr, db: db, notifier: n}
}

func rec(id, title, created string) models.Record {
	return models.Record{ID: id, CreatedTime: created, Fields: models.Fields{Title: title, Author: "Author"}}
}

func TestTracker_Fetch(t *testing.T) {
	f := newFixture(t,
		rec("r1", "Dune", "2024-01-01T00:00:00Z"),
		rec("r2", "Emma", "2024-02-01T00:00:00Z"),
	)

	st := f.tracker.State()
	assert.Len(t, st.Books, 2)
	assert.False(t, st.IsLoading)
	assert.False(t, st.HasError())
}

func TestTracker_FetchError(t *testing.T) {
	f := newFixture(t)
	f.db.FailWith(errors.New("401: Unauthorized"))

	err := f.tracker.Fetch(context.Background())
	require.Error(t, err)

	st := f.tracker.State()
	assert.False(t, st.IsLoading)
	assert.Equal(t, "401: Unauthorized", st.ErrorMessage)
}

func TestTracker_Add(t *testing.T) {
	f := newFixture(t, rec("r1", "Emma", "2024-01-01T00:00:00Z"))

	book, err := f.tracker.Add(context.Background(), NewBook{Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.NotEmpty(t, book.CreatedTime)
	assert.Equal(t, "", book.About)
	assert.Equal(t, "", book.Like)
	assert.False(t, book.IsCompleted)
	assert.Equal(t, models.DefaultRating, book.Rating)

	st := f.tracker.State()
	require.Len(t, st.Books, 2)
	assert.Equal(t, book.ID, st.Books[0].ID, "new book goes to the front")
	assert.False(t, st.IsSaving)
}

func TestTracker_AddValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.Add(context.Background(), NewBook{Title: "  ", About: "x"})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title is required", ve.Fields["title"])
	assert.Equal(t, "author is required", ve.Fields["author"])
	assert.Equal(t, "title is required; author is required", err.Error())
	assert.Empty(t, f.db.Calls(), "no request is issued")
}

func TestTracker_AddError(t *testing.T) {
	f := newFixture(t)
	f.db.FailWith(errors.New("503: Service Unavailable"))

	_, err := f.tracker.Add(context.Background(), NewBook{Title: "Dune", Author: "Herbert"})
	require.Error(t, err)

	st := f.tracker.State()
	assert.Equal(t, "503: Service Unavailable", st.ErrorMessage)
	assert.False(t, st.IsSaving)
	assert.Empty(t, st.Books)
}

func TestTracker_Update(t *testing.T) {
	f := newFixture(t, rec("r1", "A", "2024-01-01T00:00:00Z"))
	book := f.tracker.State().Books[0]
	book.Title = "B"
	book.About = "sand"

	saved, err := f.tracker.Update(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, "B", saved.Title)
	assert.Equal(t, "2024-01-01T00:00:00Z", saved.CreatedTime)

	st := f.tracker.State()
	assert.Equal(t, "B", st.Books[0].Title)
	assert.Equal(t, "sand", st.Books[0].About)
	assert.Contains(t, f.db.Calls(), "update:r1")
}

func TestTracker_UpdateFailureReverts(t *testing.T) {
	f := newFixture(t, rec("r1", "A", "2024-01-01T00:00:00Z"))
	book := f.tracker.State().Books[0]
	book.Title = "B"
	f.db.FailWith(errors.New("500: Internal Server Error"))

	_, err := f.tracker.Update(context.Background(), book)
	require.Error(t, err)

	st := f.tracker.State()
	assert.Equal(t, "A", st.Books[0].Title)
	assert.Equal(t, "500: Internal Server Error", st.ErrorMessage)
}

func TestTracker_UpdateUnknownAndInvalid(t *testing.T) {
	f := newFixture(t, rec("r1", "A", "2024-01-01T00:00:00Z"))

	_, err := f.tracker.Update(context.Background(), models.Book{ID: "nope", Title: "X", Author: "Y"})
	assert.ErrorIs(t, err, ErrUnknownBook)

	book := f.tracker.State().Books[0]
	book.Author = ""
	_, err = f.tracker.Update(context.Background(), book)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "author")
	assert.Equal(t, "Author", f.tracker.State().Books[0].Author, "nothing applied")
}

func TestTracker_ToggleCompleteNotifies(t *testing.T) {
	f := newFixture(t, rec("r1", "Dune", "2024-01-01T00:00:00Z"))

	book, err := f.tracker.ToggleComplete(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, book.IsCompleted)
	require.Len(t, f.notifier.books, 1)
	assert.Equal(t, "Dune", f.notifier.books[0].Title)

	book, err = f.tracker.ToggleComplete(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, book.IsCompleted)
	assert.Len(t, f.notifier.books, 1, "un-completing does not notify")

	_, err = f.tracker.ToggleComplete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownBook)
}

func TestTracker_Rate(t *testing.T) {
	f := newFixture(t, rec("r1", "Dune", "2024-01-01T00:00:00Z"))

	book, err := f.tracker.Rate(context.Background(), "r1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, book.Rating)
	assert.Equal(t, 4, f.tracker.State().Books[0].Rating)

	for _, bad := range []int{0, 6, -1} {
		_, err = f.tracker.Rate(context.Background(), "r1", bad)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "rating %d", bad)
	}
}

func TestTracker_SetView(t *testing.T) {
	f := newFixture(t,
		rec("r1", "Dune", "2024-01-01T00:00:00Z"),
		rec("r2", "Emma", "2024-02-01T00:00:00Z"),
	)
	ctx := context.Background()
	callsBefore := len(f.db.Calls())

	require.NoError(t, f.tracker.SetSortField(ctx, models.SortTitle))
	require.NoError(t, f.tracker.SetSortDirection(ctx, models.SortDesc))
	require.NoError(t, f.tracker.SetQuery(ctx, "Dune"))

	st := f.tracker.State()
	assert.Equal(t, models.SortTitle, st.SortField)
	assert.Equal(t, models.SortDesc, st.SortDirection)
	assert.Equal(t, "Dune", st.QueryString)
	assert.Len(t, st.Books, 1, "remote query applied")
	assert.Len(t, f.db.Calls(), callsBefore+3, "each change refetches")

	// unchanged values do not refetch
	require.NoError(t, f.tracker.SetQuery(ctx, "Dune"))
	assert.Len(t, f.db.Calls(), callsBefore+3)
}

func TestTracker_SetViewValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ve *ValidationError
	assert.ErrorAs(t, f.tracker.SetSortField(ctx, "newest"), &ve)
	assert.ErrorAs(t, f.tracker.SetSortDirection(ctx, "sideways"), &ve)
	assert.ErrorAs(t, f.tracker.SetSortField(ctx, ""), &ve)
	assert.Equal(t, models.SortCreatedTime, f.tracker.State().SortField)
	assert.Empty(t, f.db.Calls())
}

func TestTracker_View(t *testing.T) {
	var records []models.Record
	for i, title := range []string{"Dune", "dune messiah", "Emma"} {
		records = append(records, rec(string(rune('a'+i)), title, "2024-01-01T00:00:00Z"))
	}
	f := newFixture(t, records...)

	// the local filter is case-insensitive even though the store's is not
	_, _ = f.tracker.store.Dispatch(context.Background(), state.SetQueryString{Value: "DUNE"})
	page := f.tracker.View(1)

	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)
}

func TestTracker_ClearError(t *testing.T) {
	f := newFixture(t)
	f.db.FailWith(errors.New("boom"))
	_ = f.tracker.Fetch(context.Background())
	require.True(t, f.tracker.State().HasError())

	require.NoError(t, f.tracker.ClearError(context.Background()))
	assert.False(t, f.tracker.State().HasError())
}

// gatedDB holds Update calls until released, to control response order
type gatedDB struct {
	*stubs.MockDB
	gates map[string]chan error
	mu    sync.Mutex
}

func (g *gatedDB) gate(title string) chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[title]
	if !ok {
		ch = make(chan error)
		g.gates[title] = ch
	}
	return ch
}

func (g *gatedDB) Update(ctx context.Context, id string, fields models.Fields) (models.Record, error) {
	if err := <-g.gate(fields.Title); err != nil {
		return models.Record{}, err
	}
	return g.MockDB.Update(ctx, id, fields)
}

var _ storage.Storage = (*gatedDB)(nil)

func TestTracker_StaleResponseIsDiscarded(t *testing.T) {
	mock := stubs.NewMockDB()
	mock.Seed(rec("r1", "A", "2024-01-01T00:00:00Z"))
	db := &gatedDB{MockDB: mock, gates: map[string]chan error{}}
	store := state.NewStore(state.Initial(), zap.NewNop())
	t.Cleanup(store.Close)
	tr := New(store, db, nil, Options{}, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, tr.Fetch(ctx))

	first := tr.State().Books[0]
	first.Title = "first"
	second := first
	second.Title = "second"

	firstDone := make(chan error, 1)
	go func() {
		_, err := tr.Update(ctx, first)
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return tr.State().Books[0].Title == "first" }, time.Second, time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		_, err := tr.Update(ctx, second)
		secondDone <- err
	}()
	require.Eventually(t, func() bool { return tr.State().Books[0].Title == "second" }, time.Second, time.Millisecond)

	// second write confirms first, then the first one fails late
	db.gate("second") <- nil
	require.NoError(t, <-secondDone)
	db.gate("first") <- errors.New("504: Gateway Timeout")
	require.Error(t, <-firstDone)

	st := tr.State()
	assert.Equal(t, "second", st.Books[0].Title, "late failure must not roll back the newer edit")
	assert.Equal(t, "504: Gateway Timeout", st.ErrorMessage)
}

func TestTracker_StaleCompletionDoesNotNotify(t *testing.T) {
	mock := stubs.NewMockDB()
	mock.Seed(rec("r1", "A", "2024-01-01T00:00:00Z"))
	db := &gatedDB{MockDB: mock, gates: map[string]chan error{}}
	store := state.NewStore(state.Initial(), zap.NewNop())
	t.Cleanup(store.Close)
	n := &recordingNotifier{}
	tr := New(store, db, n, Options{}, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, tr.Fetch(ctx))

	completed := tr.State().Books[0]
	completed.Title = "completed"
	completed.IsCompleted = true
	reopened := completed
	reopened.Title = "reopened"
	reopened.IsCompleted = false

	completedDone := make(chan error, 1)
	go func() {
		_, err := tr.Update(ctx, completed)
		completedDone <- err
	}()
	require.Eventually(t, func() bool { return tr.State().Books[0].Title == "completed" }, time.Second, time.Millisecond)

	reopenedDone := make(chan error, 1)
	go func() {
		_, err := tr.Update(ctx, reopened)
		reopenedDone <- err
	}()
	require.Eventually(t, func() bool { return tr.State().Books[0].Title == "reopened" }, time.Second, time.Millisecond)

	db.gate("reopened") <- nil
	require.NoError(t, <-reopenedDone)
	db.gate("completed") <- nil
	require.NoError(t, <-completedDone)

	assert.False(t, tr.State().Books[0].IsCompleted)
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Empty(t, n.books, "a superseded completion is not announced")
}

// cancellingDB cancels the caller's context while the list is in flight
type cancellingDB struct {
	*stubs.MockDB
	cancel context.CancelFunc
}

func (c *cancellingDB) List(ctx context.Context, q storage.ListQuery) ([]models.Record, error) {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.MockDB.List(ctx, q)
}

func TestTracker_FetchSurvivesCallerCancel(t *testing.T) {
	mock := stubs.NewMockDB()
	mock.Seed(rec("r1", "Dune", "2024-01-01T00:00:00Z"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := state.NewStore(state.Initial(), zap.NewNop())
	t.Cleanup(store.Close)
	tr := New(store, &cancellingDB{MockDB: mock, cancel: cancel}, nil, Options{}, zap.NewNop())

	require.NoError(t, tr.Fetch(ctx))

	st := tr.State()
	assert.False(t, st.HasError(), "got %q", st.ErrorMessage)
	assert.False(t, st.IsLoading)
	assert.Len(t, st.Books, 1)
}
