package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestSiteRepositoryGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSiteRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sites" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryUpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSiteRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sites" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), uuid.New(), []models.SiteStatus{models.SiteActive}, models.SiteArchived)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryUpdateStatusConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSiteRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sites" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "sites" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.UpdateStatus(context.Background(), uuid.New(), []models.SiteStatus{models.SiteDraft}, models.SiteActive)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepositoryExpireDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "subscriptions" SET "status"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// pgError marshals like a driver error carrying a SQLSTATE code.
type pgError struct{ Code string }

func (e *pgError) Error() string { return "pg error " + e.Code }

func expectLeadUpsert(mock sqlmock.Sqlmock, id uuid.UUID, inserted bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO email_leads`) + `(?s).*` +
		regexp.QuoteMeta(`ON CONFLICT (site_id, email) DO UPDATE SET`) + `.*` +
		regexp.QuoteMeta(`RETURNING id, status, captured_at, (xmax = 0) AS inserted`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "captured_at", "inserted"}).
			AddRow(id.String(), models.LeadFreeDownload, time.Now(), inserted))
}

func TestLeadRepositoryUpsertCreates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLeadRepository(db)

	lead := &models.EmailLead{SiteID: uuid.New(), Email: " Visitor@Mail.com ", ConsentDownload: true}
	expectLeadUpsert(mock, uuid.New(), true)

	created, err := repo.Upsert(context.Background(), lead)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "visitor@mail.com", lead.Email)
	assert.Equal(t, models.LeadFreeDownload, lead.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpsertUpdatesExisting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLeadRepository(db)

	existingID := uuid.New()
	lead := &models.EmailLead{SiteID: uuid.New(), Email: "visitor@mail.com", ConsentDownload: true, ConsentMarketing: true}
	expectLeadUpsert(mock, existingID, false)

	created, err := repo.Upsert(context.Background(), lead)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existingID, lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpsertUnknownSite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLeadRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO email_leads`)).
		WillReturnError(&pgError{Code: "23503"})

	_, err := repo.Upsert(context.Background(), &models.EmailLead{SiteID: uuid.New(), Email: "x@y.z"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), ErrDuplicate)
	assert.NoError(t, translate(nil))
}
