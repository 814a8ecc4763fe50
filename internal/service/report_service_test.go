package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	"github.com/e-projects/platform-api/internal/repository"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
	"github.com/e-projects/platform-api/pkg/storage"
)

type mockReportRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.ReportJob
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = "r1"
	job.CreatedAt = time.Now().UTC()
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportRepo) MarkCompleted(ctx context.Context, id, filePath string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = models.ReportStatusCompleted
	job.FilePath = &filePath
	job.CompletedAt = &completedAt
	return nil
}

func (m *mockReportRepo) MarkFailed(ctx context.Context, id, reason string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = models.ReportStatusFailed
	job.ErrorText = &reason
	job.CompletedAt = &completedAt
	return nil
}

func (m *mockReportRepo) status(id string) models.ReportStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Status
}

type mockUsageSource struct {
	rows []repository.UsageReportRow
}

func (m *mockUsageSource) UsageReport(ctx context.Context) ([]repository.UsageReportRow, error) {
	return m.rows, nil
}

func newReportFixture(t *testing.T) (*ReportService, *mockReportRepo) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	repo := &mockReportRepo{}
	source := &mockUsageSource{rows: []repository.UsageReportRow{
		{Code: "WELCOME30", PromoType: "role", Username: "alice", Email: "alice@example.com", RedeemedAt: time.Now().UTC()},
	}}
	return NewReportService(repo, source, store, signer, 1, 1, zap.NewNop()), repo
}

func TestRequestRejectsUnknownKind(t *testing.T) {
	svc, _ := newReportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	_, err := svc.Request(ctx, "a1", "audit_log", models.ReportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestRejectsUnknownFormat(t *testing.T) {
	svc, _ := newReportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	_, err := svc.Request(ctx, "a1", ReportKindPromoUsage, models.ReportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

// Full lifecycle: request, background render, signed token, download.
func TestReportLifecycleCSV(t *testing.T) {
	svc, repo := newReportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Request(ctx, "a1", ReportKindPromoUsage, models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, job.Status)

	require.Eventually(t, func() bool {
		return repo.status(job.ID) == models.ReportStatusCompleted
	}, 3*time.Second, 10*time.Millisecond)

	status, err := svc.Status(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, status.DownloadToken)
	require.NotNil(t, status.TokenExpires)

	file, downloaded, err := svc.Download(ctx, *status.DownloadToken)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, job.ID, downloaded.ID)

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Code", records[0][0])
	assert.Equal(t, "WELCOME30", records[1][0])
}

func TestDownloadRejectsForgedToken(t *testing.T) {
	svc, _ := newReportFixture(t)

	_, _, err := svc.Download(context.Background(), "not-a-real-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestStatusMissingReport(t *testing.T) {
	svc, _ := newReportFixture(t)

	_, err := svc.Status(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
