package suggestions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
)

func setupSuggestionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	suggestions := `
CREATE TABLE IF NOT EXISTS suggestions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  notes TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  score INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	votes := `
CREATE TABLE IF NOT EXISTS suggestion_votes (
  id TEXT PRIMARY KEY,
  suggestion_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  direction TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (suggestion_id, user_id)
);`
	require.NoError(t, db.Exec(suggestions).Error)
	require.NoError(t, db.Exec(votes).Error)
	return db
}

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

func newSuggestionService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := setupSuggestionsTestDB(t)
	svc, err := NewService(NewRepository(db), dbTxRunner{db: db})
	require.NoError(t, err)
	return svc, db
}

func createSuggestion(t *testing.T, svc Service) *models.Suggestion {
	t.Helper()
	suggestion, err := svc.Create(context.Background(), CreateInput{
		UserID: uuid.New(),
		Title:  "The Master and Margarita",
		Author: "Mikhail Bulgakov",
	})
	require.NoError(t, err)
	return suggestion
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var appErr *pkgerrors.Error
	require.True(t, errors.As(err, &appErr), "expected *pkgerrors.Error, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code())
}

func loadScore(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var suggestion models.Suggestion
	require.NoError(t, db.Where("id = ?", id).First(&suggestion).Error)
	return suggestion.Score
}

func TestCreateRequiresTitleAndAuthor(t *testing.T) {
	svc, _ := newSuggestionService(t)

	_, err := svc.Create(context.Background(), CreateInput{UserID: uuid.New(), Title: "  ", Author: "Someone"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateInput{UserID: uuid.New(), Title: "Something", Author: ""})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestVoteToggleLifecycle(t *testing.T) {
	svc, db := newSuggestionService(t)
	ctx := context.Background()
	suggestion := createSuggestion(t, svc)
	userID := uuid.New()

	result, err := svc.Vote(ctx, userID, suggestion.ID, enums.VoteDirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	require.NotNil(t, result.Direction)
	assert.Equal(t, enums.VoteDirectionUp, *result.Direction)
	assert.Equal(t, 1, loadScore(t, db, suggestion.ID))

	result, err = svc.Vote(ctx, userID, suggestion.ID, enums.VoteDirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Nil(t, result.Direction)
	assert.Equal(t, 0, loadScore(t, db, suggestion.ID))

	var count int64
	require.NoError(t, db.Model(&models.SuggestionVote{}).
		Where("suggestion_id = ? AND user_id = ?", suggestion.ID, userID).
		Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestVoteFlipSwingsScoreByTwo(t *testing.T) {
	svc, db := newSuggestionService(t)
	ctx := context.Background()
	suggestion := createSuggestion(t, svc)
	userID := uuid.New()

	_, err := svc.Vote(ctx, userID, suggestion.ID, enums.VoteDirectionUp)
	require.NoError(t, err)

	result, err := svc.Vote(ctx, userID, suggestion.ID, enums.VoteDirectionDown)
	require.NoError(t, err)
	assert.Equal(t, -1, result.Score)
	require.NotNil(t, result.Direction)
	assert.Equal(t, enums.VoteDirectionDown, *result.Direction)
	assert.Equal(t, -1, loadScore(t, db, suggestion.ID))
}

// staleVoteRepo reports a vote row that no longer exists, reproducing a
// concurrent transaction winning the same toggle first.
type staleVoteRepo struct {
	Repository
	stale models.SuggestionVote
}

func (r staleVoteRepo) WithTx(tx *gorm.DB) Repository {
	return staleVoteRepo{Repository: r.Repository.WithTx(tx), stale: r.stale}
}

func (r staleVoteRepo) FindVote(ctx context.Context, suggestionID, userID uuid.UUID) (*models.SuggestionVote, error) {
	vote := r.stale
	return &vote, nil
}

func TestVoteLostRaceDoesNotAdjustScore(t *testing.T) {
	db := setupSuggestionsTestDB(t)
	base := NewRepository(db)
	baseSvc, err := NewService(base, dbTxRunner{db: db})
	require.NoError(t, err)

	ctx := context.Background()
	suggestion := createSuggestion(t, baseSvc)
	userID := uuid.New()
	stale := models.SuggestionVote{
		ID:           uuid.New(),
		SuggestionID: suggestion.ID,
		UserID:       userID,
		Direction:    enums.VoteDirectionUp,
	}
	svc, err := NewService(staleVoteRepo{Repository: base, stale: stale}, dbTxRunner{db: db})
	require.NoError(t, err)

	// Same-direction toggle: the delete hits zero rows, so no decrement.
	_, err = svc.Vote(ctx, userID, suggestion.ID, enums.VoteDirectionUp)
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, 0, loadScore(t, db, suggestion.ID))

	// Flip: the conditional update hits zero rows, so no double swing.
	_, err = svc.Vote(ctx, userID, suggestion.ID, enums.VoteDirectionDown)
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, 0, loadScore(t, db, suggestion.ID))
}

func TestVotesFromSeparateUsersAccumulate(t *testing.T) {
	svc, db := newSuggestionService(t)
	ctx := context.Background()
	suggestion := createSuggestion(t, svc)

	_, err := svc.Vote(ctx, uuid.New(), suggestion.ID, enums.VoteDirectionUp)
	require.NoError(t, err)
	_, err = svc.Vote(ctx, uuid.New(), suggestion.ID, enums.VoteDirectionUp)
	require.NoError(t, err)

	assert.Equal(t, 2, loadScore(t, db, suggestion.ID))
}

func TestVoteClosedSuggestion(t *testing.T) {
	svc, db := newSuggestionService(t)
	ctx := context.Background()
	suggestion := createSuggestion(t, svc)
	require.NoError(t, db.Model(&models.Suggestion{}).
		Where("id = ?", suggestion.ID).
		Update("status", enums.SuggestionStatusFulfilled).Error)

	_, err := svc.Vote(ctx, uuid.New(), suggestion.ID, enums.VoteDirectionUp)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestVoteUnknownSuggestion(t *testing.T) {
	svc, _ := newSuggestionService(t)

	_, err := svc.Vote(context.Background(), uuid.New(), uuid.New(), enums.VoteDirectionUp)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSetStatusRequiresAdmin(t *testing.T) {
	svc, _ := newSuggestionService(t)
	suggestion := createSuggestion(t, svc)

	err := svc.SetStatus(context.Background(), StatusInput{
		SuggestionID: suggestion.ID,
		Status:       enums.SuggestionStatusFulfilled,
		ActorID:      uuid.New(),
		ActorRole:    enums.UserRoleUser,
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestSetStatusOnlyFromOpen(t *testing.T) {
	svc, _ := newSuggestionService(t)
	ctx := context.Background()
	suggestion := createSuggestion(t, svc)
	admin := StatusInput{
		SuggestionID: suggestion.ID,
		Status:       enums.SuggestionStatusRejected,
		ActorID:      uuid.New(),
		ActorRole:    enums.UserRoleAdmin,
	}

	require.NoError(t, svc.SetStatus(ctx, admin))

	// Repeats of the same status are a no-op.
	require.NoError(t, svc.SetStatus(ctx, admin))

	admin.Status = enums.SuggestionStatusFulfilled
	err := svc.SetStatus(ctx, admin)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestListRanksByScore(t *testing.T) {
	svc, _ := newSuggestionService(t)
	ctx := context.Background()

	low := createSuggestion(t, svc)
	high := createSuggestion(t, svc)
	for i := 0; i < 3; i++ {
		_, err := svc.Vote(ctx, uuid.New(), high.ID, enums.VoteDirectionUp)
		require.NoError(t, err)
	}
	_, err := svc.Vote(ctx, uuid.New(), low.ID, enums.VoteDirectionDown)
	require.NoError(t, err)

	status := enums.SuggestionStatusPending
	rows, err := svc.List(ctx, &status, 10)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, high.ID, rows[0].ID)

	seen := map[uuid.UUID]int{}
	for _, row := range rows {
		seen[row.ID] = row.Score
	}
	assert.Equal(t, 3, seen[high.ID])
	assert.Equal(t, -1, seen[low.ID])
}
