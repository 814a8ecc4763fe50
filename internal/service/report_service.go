package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	"github.com/e-projects/platform-api/internal/repository"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
	"github.com/e-projects/platform-api/pkg/export"
	"github.com/e-projects/platform-api/pkg/jobs"
	"github.com/e-projects/platform-api/pkg/storage"
)

// ReportKindPromoUsage is the only report kind currently exported.
const ReportKindPromoUsage = "promo_usage"

const jobTypeGenerateReport = "generate_report"

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkCompleted(ctx context.Context, id, filePath string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, completedAt time.Time) error
}

type promoUsageSource interface {
	UsageReport(ctx context.Context) ([]repository.UsageReportRow, error)
}

// ReportStatusResponse is the polling payload for a report job. The download
// token appears once the file is ready.
type ReportStatusResponse struct {
	models.ReportJob
	DownloadToken *string    `json:"download_token,omitempty"`
	TokenExpires  *time.Time `json:"token_expires,omitempty"`
}

// ReportService generates promo-usage exports asynchronously. Requests are
// queued, rendered by a worker, stored on disk, and fetched back through a
// signed download token.
type ReportService struct {
	reports reportRepository
	promos  promoUsageSource
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewReportService constructs a ReportService and its worker queue.
func NewReportService(reports reportRepository, promos promoUsageSource, store *storage.LocalStorage, signer *storage.SignedURLSigner, concurrency, retries int, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ReportService{
		reports: reports,
		promos:  promos,
		storage: store,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}

	s.queue = jobs.NewQueue("reports", s.process, jobs.QueueConfig{
		Workers:    concurrency,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start launches the report workers.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the report workers.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Request queues a new report job.
func (s *ReportService) Request(ctx context.Context, requestedBy string, kind string, format models.ReportFormat) (*models.ReportJob, error) {
	if kind != ReportKindPromoUsage {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report kind")
	}
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report format")
	}

	job := &models.ReportJob{
		Kind:        kind,
		Format:      format,
		Status:      models.ReportStatusPending,
		RequestedBy: requestedBy,
	}
	if err := s.reports.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeGenerateReport, Payload: job.ID}); err != nil {
		reason := "report worker unavailable"
		if markErr := s.reports.MarkFailed(ctx, job.ID, reason, time.Now().UTC()); markErr != nil {
			s.logger.Error("failed to mark report failed", zap.String("report_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, reason)
	}
	return job, nil
}

// Status returns the job state plus a signed download token when completed.
func (s *ReportService) Status(ctx context.Context, id string) (*ReportStatusResponse, error) {
	job, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch report")
	}

	resp := &ReportStatusResponse{ReportJob: *job}
	if job.Status == models.ReportStatusCompleted && job.FilePath != nil {
		token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
		}
		resp.DownloadToken = &token
		resp.TokenExpires = &expiresAt
	}
	return resp, nil
}

// Download validates the signed token and opens the stored file.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, *models.ReportJob, error) {
	reportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	job, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch report")
	}
	if job.Status != models.ReportStatusCompleted || job.FilePath == nil || *job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report file not available")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return file, job, nil
}

func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	reportID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}

	rows, err := s.promos.UsageReport(ctx)
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("collect usage rows: %w", err))
	}

	dataset := export.Dataset{
		Headers: []string{"Code", "Type", "Username", "Email", "Redeemed At"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Code":        row.Code,
			"Type":        row.PromoType,
			"Username":    row.Username,
			"Email":       row.Email,
			"Redeemed At": row.RedeemedAt.UTC().Format(time.RFC3339),
		})
	}

	var payload []byte
	switch report.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Promo Code Usage")
	default:
		err = fmt.Errorf("unknown format %q", report.Format)
	}
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("render report: %w", err))
	}

	filename := fmt.Sprintf("%s/%s.%s", report.Kind, report.ID, report.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("store report: %w", err))
	}

	if err := s.reports.MarkCompleted(ctx, report.ID, relPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report completed: %w", err)
	}

	s.logger.Info("report generated",
		zap.String("report_id", report.ID),
		zap.String("format", string(report.Format)),
		zap.Int("rows", len(rows)))
	return nil
}

func (s *ReportService) fail(ctx context.Context, report *models.ReportJob, cause error) error {
	if err := s.reports.MarkFailed(ctx, report.ID, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Error("failed to mark report failed", zap.String("report_id", report.ID), zap.Error(err))
	}
	return cause
}
