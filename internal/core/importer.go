package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/JonMunkholm/hospital-bulk/internal/hospitalapi"
	"github.com/JonMunkholm/hospital-bulk/internal/logging"
	"github.com/google/uuid"
)

// Directory is the external Hospital Directory API as seen by the importer.
type Directory interface {
	CreateHospital(ctx context.Context, h hospitalapi.NewHospital) (*hospitalapi.Response, error)
	ActivateBatch(ctx context.Context, batchID string) (*hospitalapi.Response, error)
}

// HistoryRecorder stores completed batches.
type HistoryRecorder interface {
	RecordBatch(ctx context.Context, rec BatchRecord) error
}

// ImporterConfig tunes an Importer. Zero values select defaults.
type ImporterConfig struct {
	MaxRows       int
	MaxConcurrent int
	MaxWaitTime   time.Duration
	History       HistoryRecorder // optional

	// RecordTimeout bounds the history write after a batch.
	RecordTimeout time.Duration
}

// DefaultRecordTimeout is used when ImporterConfig.RecordTimeout is zero.
const DefaultRecordTimeout = 5 * time.Second

// Importer runs CSV batches against the Hospital Directory API.
//
// Rows of one batch are sent strictly one after another in CSV order; a
// failing row never stops the batch. The batch is activated only when every
// row was created.
type Importer struct {
	dir     Directory
	history HistoryRecorder
	limiter *ImportLimiter
	maxRows int

	recordTimeout time.Duration

	newBatchID func() string
	now        func() time.Time
}

// NewImporter creates an Importer backed by dir.
func NewImporter(dir Directory, cfg ImporterConfig) *Importer {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	recordTimeout := cfg.RecordTimeout
	if recordTimeout <= 0 {
		recordTimeout = DefaultRecordTimeout
	}
	return &Importer{
		dir:           dir,
		history:       cfg.History,
		limiter:       NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		maxRows:       maxRows,
		recordTimeout: recordTimeout,
		newBatchID:    func() string { return uuid.New().String() },
		now:           time.Now,
	}
}

// MaxRows returns the per-upload row cap.
func (im *Importer) MaxRows() int {
	return im.maxRows
}

// Import parses an uploaded CSV and processes it as one batch.
//
// Request-shape problems are returned as *InputError before any external
// call. ErrTooManyImports is returned when no import slot frees up in time.
// Every other outcome is reported inside the returned BatchReport.
func (im *Importer) Import(ctx context.Context, data []byte, meta UploadMeta) (*BatchReport, error) {
	rows, err := ParseUpload(data, im.maxRows)
	if err != nil {
		return nil, err
	}

	if err := im.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer im.limiter.Release()

	report := im.Run(ctx, rows)
	im.record(ctx, report, meta)
	return report, nil
}

// Run processes already parsed rows under a fresh batch id.
func (im *Importer) Run(ctx context.Context, rows []HospitalRow) *BatchReport {
	return im.RunBatch(ctx, im.newBatchID(), rows)
}

// RunBatch processes rows under the given batch id.
func (im *Importer) RunBatch(ctx context.Context, batchID string, rows []HospitalRow) *BatchReport {
	logger := logging.WithFields(ctx, "batch_id", batchID)
	logger.Info("batch started", "rows", len(rows))

	report := &BatchReport{
		BatchID:        batchID,
		TotalHospitals: len(rows),
		Hospitals:      make([]HospitalOutcome, 0, len(rows)),
	}

	start := im.now()
	succeeded := 0

	for _, row := range rows {
		outcome := HospitalOutcome{Row: row.Index, Name: row.DisplayName()}

		res := im.createHospital(ctx, batchID, row)
		if res.err != "" {
			outcome.Status = StatusFailed
			outcome.Error = res.err
			report.FailedHospitals++
			logger.Warn("hospital row failed", "row", row.Index, "error", res.err)
		} else {
			outcome.Status = StatusCreated
			outcome.HospitalID = res.id
			succeeded++
		}

		report.ProcessedHospitals++
		report.Hospitals = append(report.Hospitals, outcome)
	}

	if report.FailedHospitals == 0 && succeeded > 0 {
		activated, activationErr := im.activate(ctx, batchID)
		if activated {
			report.BatchActivated = true
			for i := range report.Hospitals {
				if report.Hospitals[i].Status == StatusCreated {
					report.Hospitals[i].Status = StatusCreatedAndActivated
				}
			}
		} else {
			report.ActivationError = activationErr
			logger.Warn("batch activation failed", "error", activationErr)
		}
	}

	report.ProcessingTimeSeconds = roundSeconds(im.now().Sub(start))

	logger.Info("batch finished",
		"processed", report.ProcessedHospitals,
		"failed", report.FailedHospitals,
		"activated", report.BatchActivated,
		"seconds", report.ProcessingTimeSeconds,
	)
	return report
}

// createResult is the outcome of one create call: an id or a failure message.
type createResult struct {
	id  json.RawMessage
	err string
}

func (im *Importer) createHospital(ctx context.Context, batchID string, row HospitalRow) createResult {
	if !row.Valid() {
		return createResult{err: RequiredFieldsMessage}
	}

	resp, err := im.dir.CreateHospital(ctx, hospitalapi.NewHospital{
		Name:            row.Name,
		Address:         row.Address,
		CreationBatchID: batchID,
		Phone:           row.Phone,
	})
	if err != nil {
		return createResult{err: err.Error()}
	}
	if !resp.OK {
		return createResult{err: fmt.Sprintf("API responded %d: %s", resp.StatusCode, resp.TrimmedText())}
	}

	id, err := resp.ID()
	if err != nil {
		return createResult{err: err.Error()}
	}
	return createResult{id: id}
}

// activate issues the single batch activation call.
// It reports success or a message describing the failure.
func (im *Importer) activate(ctx context.Context, batchID string) (bool, string) {
	resp, err := im.dir.ActivateBatch(ctx, batchID)
	if err != nil {
		return false, err.Error()
	}
	if !resp.OK {
		return false, fmt.Sprintf("Activation failed with %d: %s", resp.StatusCode, resp.TrimmedText())
	}
	return true, ""
}

// record stores the report in the import history. Failures are logged only.
func (im *Importer) record(ctx context.Context, report *BatchReport, meta UploadMeta) {
	if im.history == nil {
		return
	}

	rec := BatchRecord{
		Report:      *report,
		FileName:    meta.FileName,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		CompletedAt: im.now().UTC(),
	}

	// The client may already be gone; the record is still wanted, but only
	// for recordTimeout so a stalled database cannot hold the slot.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), im.recordTimeout)
	defer cancel()

	if err := im.history.RecordBatch(recordCtx, rec); err != nil {
		logging.WithFields(ctx, "batch_id", report.BatchID).Error("failed to record batch history", "error", err)
	}
}

// LimiterStatus reports how many imports are running.
func (im *Importer) LimiterStatus() ImportLimiterStatus {
	return im.limiter.Status()
}

// WaitForImports blocks until in-flight imports finish or ctx ends.
func (im *Importer) WaitForImports(ctx context.Context) error {
	return im.limiter.WaitForDrain(ctx)
}

// roundSeconds converts d to seconds with two decimals, never negative.
func roundSeconds(d time.Duration) float64 {
	s := math.Round(d.Seconds()*100) / 100
	if s < 0 {
		return 0
	}
	return s
}
