package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/internal/models"
	"github.com/campushq/classroom-api/pkg/config"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
	"github.com/campushq/classroom-api/pkg/export"
	"github.com/campushq/classroom-api/pkg/jobs"
	"github.com/campushq/classroom-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ExportStatus) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
	ListByCreator(ctx context.Context, createdBy string) ([]models.ExportJob, error)
}

type rosterSource interface {
	ListEnrolledByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error)
}

type digestSource interface {
	ListByCourse(ctx context.Context, courseCode string, answered *bool) ([]models.QuestionDetail, error)
	ListAnswersByCourse(ctx context.Context, courseCode string) ([]models.Answer, error)
}

const exportQueueName = "exports"

// ExportService produces roster CSVs and doubt digest PDFs asynchronously.
// Jobs run on an in-process worker pool; finished artifacts land on local
// storage and are fetched through signed, expiring download tokens.
type ExportService struct {
	exports exportJobRepository
	courses courseReader
	roster  rosterSource
	doubts  digestSource

	queue   *jobs.Queue
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	metrics *MetricsService
	logger  *zap.Logger

	retention  time.Duration
	maxRetries int
	now        func() time.Time
}

// NewExportService constructs ExportService and its worker queue. Call Start
// before enqueueing and Stop on shutdown.
func NewExportService(
	exports exportJobRepository,
	courses courseReader,
	roster rosterSource,
	doubts digestSource,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	cfg config.ExportsConfig,
	metrics *MetricsService,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		exports:    exports,
		courses:    courses,
		roster:     roster,
		doubts:     doubts,
		store:      store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		logger:     logger,
		retention:  cfg.RetentionPeriod,
		maxRetries: cfg.WorkerRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue(exportQueueName, s.handleJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// EnqueueRoster schedules a CSV export of the course's enrolled students.
// Owner teacher only.
func (s *ExportService) EnqueueRoster(ctx context.Context, teacherID, courseCode string) (*models.ExportJob, error) {
	return s.enqueue(ctx, teacherID, courseCode, nil, models.ExportTypeRoster, models.ExportFormatCSV)
}

// EnqueueDoubtDigest schedules a PDF digest of the course's questions,
// optionally narrowed to one lecture. Owner teacher only.
func (s *ExportService) EnqueueDoubtDigest(ctx context.Context, teacherID, courseCode string, lectureID *string) (*models.ExportJob, error) {
	return s.enqueue(ctx, teacherID, courseCode, lectureID, models.ExportTypeDoubtDigest, models.ExportFormatPDF)
}

func (s *ExportService) enqueue(ctx context.Context, teacherID, courseCode string, lectureID *string, exportType models.ExportType, format models.ExportFormat) (*models.ExportJob, error) {
	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning teacher may export course data")
	}

	job := &models.ExportJob{
		ID:         uuid.NewString(),
		Type:       exportType,
		Format:     format,
		CourseCode: courseCode,
		LectureID:  lectureID,
		Status:     models.ExportStatusQueued,
		CreatedBy:  teacherID,
		CreatedAt:  s.now(),
	}
	if err := s.exports.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(exportType), Payload: job.ID}); err != nil {
		finishedAt := s.now()
		if markErr := s.exports.MarkFailed(ctx, job.ID, "queue unavailable", finishedAt); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// Get returns an export job visible only to its creator.
func (s *ExportService) Get(ctx context.Context, requesterID, jobID string) (*models.ExportJob, error) {
	job, err := s.exports.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.CreatedBy != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another account")
	}
	return job, nil
}

// List returns the requester's export jobs, newest first.
func (s *ExportService) List(ctx context.Context, requesterID string) ([]models.ExportJob, error) {
	listed, err := s.exports.ListByCreator(ctx, requesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return listed, nil
}

// Download validates a signed token and opens the referenced artifact.
func (s *ExportService) Download(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}

	job, err := s.exports.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "export job has no finished artifact")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export artifact unavailable")
	}
	return file, job, nil
}

// Cleanup removes artifacts past the retention period. Run from the cron
// scheduler.
func (s *ExportService) Cleanup(ctx context.Context) error {
	deleted, err := s.store.CleanupOlderThan(s.retention)
	if err != nil {
		return fmt.Errorf("cleanup export artifacts: %w", err)
	}
	if len(deleted) > 0 {
		s.logger.Info("export artifacts cleaned up", zap.Int("count", len(deleted)))
	}
	return nil
}

// handleJob runs on the worker pool. Transient failures are retried by the
// queue; the job row flips to FAILED only after the final attempt.
func (s *ExportService) handleJob(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)
	if jobID == "" {
		jobID = queued.ID
	}

	job, err := s.exports.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	if err := s.exports.UpdateStatus(ctx, job.ID, models.ExportStatusProcessing); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	relPath, err := s.produce(ctx, job)
	if err == nil {
		token, _, signErr := s.signer.Generate(job.ID, relPath)
		if signErr != nil {
			err = fmt.Errorf("sign download token: %w", signErr)
		} else {
			resultURL := "/exports/download/" + token
			if markErr := s.exports.MarkFinished(ctx, job.ID, resultURL, s.now()); markErr != nil {
				err = fmt.Errorf("mark export job finished: %w", markErr)
			}
		}
	}

	if err == nil {
		s.metrics.RecordExportJob(string(job.Type), string(models.ExportStatusFinished))
		return nil
	}

	if queued.Attempt >= s.maxRetries {
		if markErr := s.exports.MarkFailed(ctx, job.ID, err.Error(), s.now()); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		s.metrics.RecordExportJob(string(job.Type), string(models.ExportStatusFailed))
		s.logger.Error("export job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
		return nil
	}
	return err
}

func (s *ExportService) produce(ctx context.Context, job *models.ExportJob) (string, error) {
	switch job.Type {
	case models.ExportTypeRoster:
		return s.produceRoster(ctx, job)
	case models.ExportTypeDoubtDigest:
		return s.produceDoubtDigest(ctx, job)
	default:
		return "", fmt.Errorf("unknown export type %q", job.Type)
	}
}

func (s *ExportService) produceRoster(ctx context.Context, job *models.ExportJob) (string, error) {
	enrolled, err := s.roster.ListEnrolledByCourse(ctx, job.CourseCode)
	if err != nil {
		return "", fmt.Errorf("load roster: %w", err)
	}

	data := export.Dataset{
		Headers: []string{"Roll Number", "Name", "Requested At", "Enrolled At"},
	}
	for _, row := range enrolled {
		record := map[string]string{
			"Roll Number":  row.RollNumber,
			"Name":         row.StudentName,
			"Requested At": row.RequestedAt.Format(time.RFC3339),
		}
		if row.DecidedAt != nil {
			record["Enrolled At"] = row.DecidedAt.Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, record)
	}

	payload, err := s.csv.Render(data)
	if err != nil {
		return "", fmt.Errorf("render roster csv: %w", err)
	}
	relPath := fmt.Sprintf("rosters/%s_%s.csv", job.CourseCode, job.ID)
	return s.store.Save(relPath, payload)
}

func (s *ExportService) produceDoubtDigest(ctx context.Context, job *models.ExportJob) (string, error) {
	questions, err := s.doubts.ListByCourse(ctx, job.CourseCode, nil)
	if err != nil {
		return "", fmt.Errorf("load questions: %w", err)
	}
	answers, err := s.doubts.ListAnswersByCourse(ctx, job.CourseCode)
	if err != nil {
		return "", fmt.Errorf("load answers: %w", err)
	}

	answerCount := make(map[string]int, len(questions))
	for _, answer := range answers {
		answerCount[answer.QuestionID]++
	}

	data := export.Dataset{
		Headers: []string{"Asked By", "Question", "Upvotes", "Answered", "Answers"},
	}
	for _, question := range questions {
		if job.LectureID != nil && question.LectureID != *job.LectureID {
			continue
		}
		data.Rows = append(data.Rows, map[string]string{
			"Asked By": question.StudentName,
			"Question": question.Text,
			"Upvotes":  strconv.Itoa(question.Upvotes),
			"Answered": strconv.FormatBool(question.Answered),
			"Answers":  strconv.Itoa(answerCount[question.ID]),
		})
	}

	payload, err := s.pdf.Render(data, fmt.Sprintf("Doubt digest %s", job.CourseCode))
	if err != nil {
		return "", fmt.Errorf("render doubt digest pdf: %w", err)
	}
	relPath := fmt.Sprintf("digests/%s_%s.pdf", job.CourseCode, job.ID)
	return s.store.Save(relPath, payload)
}
