package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"betterreads/internal/catalog"
	"betterreads/internal/dump"
	"betterreads/internal/testutil"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunRepo struct {
	mock.Mock
}

func (m *mockRunRepo) CreateRun(ctx context.Context, run *Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRunRepo) UpdateRun(ctx context.Context, run *Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

type mockCatalogRepo struct {
	mock.Mock
}

func (m *mockCatalogRepo) SaveAuthor(ctx context.Context, author catalog.Author) error {
	args := m.Called(ctx, author)
	return args.Error(0)
}

func (m *mockCatalogRepo) SaveBook(ctx context.Context, book catalog.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *mockCatalogRepo) FindAuthorByID(ctx context.Context, id string) (catalog.Author, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(catalog.Author), args.Error(1)
}

// collect records every reported result.
func collect(results *[]LineResult) Option {
	return WithReporter(ReporterFunc(func(res LineResult) {
		*results = append(*results, res)
	}))
}

func TestService_RunAuthorsThenWorks(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewMemoryRepo()

	authors := testutil.WriteDump(t, "authors.txt",
		testutil.AuthorLine(`{"key":"/authors/OL1A","name":"Ann Author","personal_name":"Ann"}`),
		testutil.AuthorLine(`{"key":"/authors/OL2A","name":"Bob Writer"}`),
	)
	works := testutil.WriteDump(t, "works.txt.gz",
		testutil.WorkLine(`{"key":"/works/OL1W","title":"First","authors":[{"author":{"key":"/authors/OL2A"}},{"author":{"key":"/authors/OL9A"}}],"covers":["100"],"created":{"type":"/type/datetime","value":"2009-12-11T01:57:19.964652"}}`),
		testutil.WorkLine(`{"key":"/works/OL2W","title":"Second","description":{"value":"Short"}}`),
		testutil.WorkLine(`{"key":"/works/OL3W","title":"No authors","authors":[]}`),
	)

	var results []LineResult
	s := NewService(repo, Config{}, collect(&results))

	run, err := s.RunAuthors(ctx, authors)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, KindAuthors, run.Kind)
	assert.Equal(t, 2, run.LinesRead)
	assert.Equal(t, 2, run.RecordsSaved)
	assert.Equal(t, 0, run.LinesSkipped)
	require.NotNil(t, run.FinishedAt)

	run, err = s.RunWorks(ctx, works)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 3, run.RecordsSaved)

	first, err := repo.FindBookByID(ctx, "OL1W")
	require.NoError(t, err)
	assert.Equal(t, []string{"OL2A", "OL9A"}, first.AuthorIDs)
	assert.Equal(t, []string{"Bob Writer", catalog.UnknownAuthor}, first.AuthorNames)
	assert.Equal(t, []string{"100"}, first.CoverIDs)
	require.NotNil(t, first.PublishDate)
	assert.Equal(t, "2009-12-11", first.PublishDate.Format(time.DateOnly))

	second, err := repo.FindBookByID(ctx, "OL2W")
	require.NoError(t, err)
	assert.Equal(t, "Short", second.Description)
	assert.Nil(t, second.AuthorNames)
	assert.Nil(t, second.PublishDate)

	third, err := repo.FindBookByID(ctx, "OL3W")
	require.NoError(t, err)
	assert.NotNil(t, third.AuthorNames)
	assert.Empty(t, third.AuthorNames)

	nAuthors, nBooks := repo.Counts()
	assert.Equal(t, 2, nAuthors)
	assert.Equal(t, 3, nBooks)

	require.Len(t, results, 5)
	assert.Equal(t, LineResult{Kind: KindAuthors, Line: 1, Outcome: Saved, ID: "OL1A", Label: "Ann Author"}, results[0])
	assert.Equal(t, LineResult{Kind: KindWorks, Line: 2, Outcome: Saved, ID: "OL2W", Label: "Second"}, results[3])
}

func TestService_WorksBeforeAuthors(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewMemoryRepo()
	works := testutil.WriteDump(t, "works.txt",
		testutil.WorkLine(`{"key":"/works/OL1W","authors":[{"author":{"key":"/authors/OL1A"}}]}`),
	)

	_, err := NewService(repo, Config{}).RunWorks(ctx, works)
	require.NoError(t, err)

	book, err := repo.FindBookByID(ctx, "OL1W")
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.UnknownAuthor}, book.AuthorNames)
}

func TestService_SkipsBadLines(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewMemoryRepo()
	works := testutil.WriteDump(t, "works.txt",
		testutil.WorkLine(`{"key":"/works/OL1W","title":"Good"}`),
		"no json here",
		testutil.WorkLine(`{"title":"No key"}`),
		testutil.WorkLine(`{"key":"/works/OL4W","covers":[1]}`),
		testutil.WorkLine(`{"key":"/works/OL5W","created":{"value":"not-a-date"}}`),
		testutil.WorkLine(`{"key":"/works/OL6W","title":"Also good"`),
		testutil.WorkLine(`{"key":"/works/OL7W","title":"Last"}`),
	)

	var results []LineResult
	run, err := NewService(repo, Config{}, collect(&results)).RunWorks(ctx, works)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 7, run.LinesRead)
	assert.Equal(t, 2, run.RecordsSaved)
	assert.Equal(t, 5, run.LinesSkipped)

	var skippedLines []int
	for _, res := range results {
		if res.Outcome == Skipped {
			skippedLines = append(skippedLines, res.Line)
			var lpe *LineParseError
			assert.True(t, errors.As(res.Err, &lpe), "line %d: %v", res.Line, res.Err)
		}
	}
	assert.Equal(t, []int{2, 3, 4, 5, 6}, skippedLines)

	_, err = repo.FindBookByID(ctx, "OL4W")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = repo.FindBookByID(ctx, "OL7W")
	assert.NoError(t, err)
}

func TestService_Limit(t *testing.T) {
	ctx := context.Background()
	lines := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		lines = append(lines, testutil.AuthorLine(fmt.Sprintf(`{"key":"/authors/OL%dA","name":"A%d"}`, i, i)))
	}
	path := testutil.WriteDump(t, "authors.txt", lines...)

	t.Run("stops after limit lines", func(t *testing.T) {
		repo := catalog.NewMemoryRepo()
		run, err := NewService(repo, Config{Limit: 3}).RunAuthors(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 3, run.LinesRead)
		assert.Equal(t, 3, run.ConfigLimit)

		nAuthors, _ := repo.Counts()
		assert.Equal(t, 3, nAuthors)
		_, err = repo.FindAuthorByID(ctx, "OL4A")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("limit above line count reads everything", func(t *testing.T) {
		repo := catalog.NewMemoryRepo()
		run, err := NewService(repo, Config{Limit: 50}).RunAuthors(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 5, run.LinesRead)
	})

	t.Run("skipped lines count toward the limit", func(t *testing.T) {
		repo := catalog.NewMemoryRepo()
		bad := testutil.WriteDump(t, "authors.txt", "junk", "junk", lines[0])
		run, err := NewService(repo, Config{Limit: 2}).RunAuthors(ctx, bad)
		require.NoError(t, err)
		assert.Equal(t, 2, run.LinesSkipped)
		assert.Equal(t, 0, run.RecordsSaved)
	})
}

func TestService_MissingFile(t *testing.T) {
	runRepo := new(mockRunRepo)
	runRepo.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	runRepo.On("UpdateRun", mock.Anything, mock.MatchedBy(func(run *Run) bool {
		return run.Status == StatusFailed && run.Error != "" && run.FinishedAt != nil
	})).Return(nil)

	s := NewService(catalog.NewMemoryRepo(), Config{}, WithRunRepository(runRepo))
	run, err := s.RunAuthors(context.Background(), "/does/not/exist.txt")

	var fae *dump.FileAccessError
	require.True(t, errors.As(err, &fae))
	assert.Equal(t, "/does/not/exist.txt", fae.Path)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, 0, run.LinesRead)
	runRepo.AssertExpectations(t)
}

func TestService_LineTooLongFailsPass(t *testing.T) {
	repo := catalog.NewMemoryRepo()
	path := testutil.WriteDump(t, "authors.txt",
		testutil.AuthorLine(`{"key":"/authors/OL1A"}`),
		testutil.AuthorLine(`{"key":"/authors/OL2A","name":"`+strings.Repeat("x", 600)+`"}`),
	)

	run, err := NewService(repo, Config{MaxLineBytes: 256}).RunAuthors(context.Background(), path)
	var fae *dump.FileAccessError
	require.True(t, errors.As(err, &fae))
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, 1, run.RecordsSaved)
}

func TestService_RecordsRun(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteDump(t, "authors.txt",
		testutil.AuthorLine(`{"key":"/authors/OL1A","name":"One"}`),
		"broken",
	)

	t.Run("completed", func(t *testing.T) {
		runRepo := new(mockRunRepo)
		runRepo.On("CreateRun", ctx, mock.MatchedBy(func(run *Run) bool {
			return run.Status == StatusRunning && run.Kind == KindAuthors && run.Path == path && run.ID != ""
		})).Return(nil)
		runRepo.On("UpdateRun", mock.Anything, mock.MatchedBy(func(run *Run) bool {
			return run.Status == StatusCompleted && run.LinesRead == 2 && run.RecordsSaved == 1 && run.LinesSkipped == 1
		})).Return(nil)

		_, err := NewService(catalog.NewMemoryRepo(), Config{}, WithRunRepository(runRepo)).RunAuthors(ctx, path)
		assert.NoError(t, err)
		runRepo.AssertExpectations(t)
	})

	t.Run("create failure aborts before reading", func(t *testing.T) {
		runRepo := new(mockRunRepo)
		runRepo.On("CreateRun", ctx, mock.Anything).Return(fmt.Errorf("db down"))

		repo := catalog.NewMemoryRepo()
		_, err := NewService(repo, Config{}, WithRunRepository(runRepo)).RunAuthors(ctx, path)
		assert.Error(t, err)
		runRepo.AssertNotCalled(t, "UpdateRun", mock.Anything, mock.Anything)

		nAuthors, _ := repo.Counts()
		assert.Equal(t, 0, nAuthors)
	})

	t.Run("update failure does not fail the pass", func(t *testing.T) {
		runRepo := new(mockRunRepo)
		runRepo.On("CreateRun", ctx, mock.Anything).Return(nil)
		runRepo.On("UpdateRun", mock.Anything, mock.Anything).Return(fmt.Errorf("db down"))

		run, err := NewService(catalog.NewMemoryRepo(), Config{}, WithRunRepository(runRepo)).RunAuthors(ctx, path)
		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
	})
}

func TestService_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := testutil.WriteDump(t, "authors.txt", testutil.AuthorLine(`{"key":"/authors/OL1A"}`))
	runRepo := new(mockRunRepo)
	runRepo.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	runRepo.On("UpdateRun", mock.MatchedBy(func(c context.Context) bool {
		return c.Err() == nil
	}), mock.MatchedBy(func(run *Run) bool {
		return run.Status == StatusFailed
	})).Return(nil)

	repo := catalog.NewMemoryRepo()
	run, err := NewService(repo, Config{}, WithRunRepository(runRepo)).RunAuthors(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, run.LinesRead)
	runRepo.AssertExpectations(t)
}

func TestService_StoreErrorsSkipLine(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteDump(t, "authors.txt",
		testutil.AuthorLine(`{"key":"/authors/OL1A","name":"One"}`),
		testutil.AuthorLine(`{"key":"/authors/OL2A","name":"Two"}`),
	)

	repo := new(mockCatalogRepo)
	repo.On("SaveAuthor", ctx, catalog.Author{ID: "OL1A", Name: "One"}).Return(fmt.Errorf("connection reset"))
	repo.On("SaveAuthor", ctx, catalog.Author{ID: "OL2A", Name: "Two"}).Return(nil)

	var results []LineResult
	run, err := NewService(repo, Config{}, collect(&results)).RunAuthors(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, run.RecordsSaved)
	assert.Equal(t, 1, run.LinesSkipped)

	require.Len(t, results, 2)
	var se *StoreError
	require.True(t, errors.As(results[0].Err, &se))
	assert.Equal(t, "save author", se.Op)
	assert.Equal(t, "OL1A", se.ID)
	assert.Equal(t, Saved, results[1].Outcome)
	repo.AssertExpectations(t)
}

func TestService_AuthorLookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	path := testutil.WriteDump(t, "works.txt",
		testutil.WorkLine(`{"key":"/works/OL1W","authors":[{"author":{"key":"/authors/OL1A"}},{"author":{"key":"/authors/OL2A"}}]}`),
		testutil.WorkLine(`{"key":"/works/OL2W","authors":[{"author":{"key":"/authors/OL1A"}}]}`),
	)

	repo := catalog.NewMockRepository(ctrl)
	gomock.InOrder(
		repo.EXPECT().FindAuthorByID(gomock.Any(), "OL1A").Return(catalog.Author{ID: "OL1A", Name: "One"}, nil),
		repo.EXPECT().FindAuthorByID(gomock.Any(), "OL2A").Return(catalog.Author{}, errors.New("timeout")),
		repo.EXPECT().FindAuthorByID(gomock.Any(), "OL1A").Return(catalog.Author{ID: "OL1A", Name: "One"}, nil),
		repo.EXPECT().SaveBook(gomock.Any(), catalog.Book{
			ID:          "OL2W",
			AuthorIDs:   []string{"OL1A"},
			AuthorNames: []string{"One"},
		}).Return(nil),
	)

	var results []LineResult
	run, err := NewService(repo, Config{}, collect(&results)).RunWorks(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, run.LinesSkipped)
	assert.Equal(t, 1, run.RecordsSaved)

	var se *StoreError
	require.True(t, errors.As(results[0].Err, &se))
	assert.Equal(t, "find author", se.Op)
	assert.Equal(t, "OL2A", se.ID)
}

func TestService_WriteRate(t *testing.T) {
	repo := catalog.NewMemoryRepo()
	path := testutil.WriteDump(t, "authors.txt",
		testutil.AuthorLine(`{"key":"/authors/OL1A"}`),
		testutil.AuthorLine(`{"key":"/authors/OL2A"}`),
		testutil.AuthorLine(`{"key":"/authors/OL3A"}`),
	)

	start := time.Now()
	run, err := NewService(repo, Config{WriteRate: 20}).RunAuthors(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, run.RecordsSaved)
	// burst of one, then two waits of 50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestTally(t *testing.T) {
	var forwarded int
	tally := NewTally(ReporterFunc(func(LineResult) { forwarded++ }), 1)

	tally.Report(LineResult{Outcome: Saved})
	tally.Report(LineResult{Outcome: Skipped, Line: 2})
	tally.Report(LineResult{Outcome: Skipped, Line: 3})

	assert.Equal(t, 1, tally.Saved)
	assert.Equal(t, 2, tally.Skipped)
	require.Len(t, tally.Failures, 1)
	assert.Equal(t, 2, tally.Failures[0].Line)
	assert.Equal(t, 3, forwarded)
}
