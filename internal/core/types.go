package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the per-row outcome of a batch import.
type Status string

const (
	StatusCreated             Status = "created"
	StatusCreatedAndActivated Status = "created_and_activated"
	StatusFailed              Status = "failed"
)

// MissingNamePlaceholder is shown in reports for rows without a name.
const MissingNamePlaceholder = "<missing name>"

// RequiredFieldsMessage is the failure recorded for rows lacking name or address.
const RequiredFieldsMessage = "name and address are required fields"

// DefaultMaxRows is the per-upload row cap.
const DefaultMaxRows = 20

// HospitalRow is one normalized CSV data row.
type HospitalRow struct {
	Index   int    // 1-based data row position in the CSV
	Name    string
	Address string
	Phone   string // optional
}

// Valid reports whether the row has every required field.
func (r HospitalRow) Valid() bool {
	return r.Name != "" && r.Address != ""
}

// DisplayName returns the name for reports, substituting a placeholder when empty.
func (r HospitalRow) DisplayName() string {
	if r.Name == "" {
		return MissingNamePlaceholder
	}
	return r.Name
}

// HospitalOutcome records what happened to one row.
type HospitalOutcome struct {
	Row        int             `json:"row"`
	Name       string          `json:"name"`
	Status     Status          `json:"status"`
	HospitalID json.RawMessage `json:"hospital_id,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// BatchReport is the response body for a processed batch.
type BatchReport struct {
	BatchID               string            `json:"batch_id"`
	TotalHospitals        int               `json:"total_hospitals"`
	ProcessedHospitals    int               `json:"processed_hospitals"`
	FailedHospitals       int               `json:"failed_hospitals"`
	ProcessingTimeSeconds float64           `json:"processing_time_seconds"`
	BatchActivated        bool              `json:"batch_activated"`
	Hospitals             []HospitalOutcome `json:"hospitals"`
	ActivationError       string            `json:"activation_error,omitempty"`
}

// SuccessfulHospitals counts rows whose create call succeeded.
func (r *BatchReport) SuccessfulHospitals() int {
	n := 0
	for _, h := range r.Hospitals {
		if h.Status != StatusFailed {
			n++
		}
	}
	return n
}

// UploadMeta describes where a batch came from. It is carried into the
// import history and never affects processing.
type UploadMeta struct {
	FileName  string
	IPAddress string
	UserAgent string
}

// BatchRecord is a completed batch as stored in the import history.
type BatchRecord struct {
	Report      BatchReport `json:"report"`
	FileName    string      `json:"file_name,omitempty"`
	IPAddress   string      `json:"ip_address,omitempty"`
	UserAgent   string      `json:"user_agent,omitempty"`
	CompletedAt time.Time   `json:"completed_at"`
}

// InputError is a request-shape problem detected before any external call.
// The web layer answers it with 400.
type InputError struct {
	Message string
	Err     error

	// kind is a sentinel matched by errors.Is without showing in Error().
	kind error
}

// ErrTooManyRows marks an upload over the per-upload row cap.
var ErrTooManyRows = errors.New("too many hospital rows")

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func (e *InputError) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

func inputErrorf(format string, args ...any) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}
