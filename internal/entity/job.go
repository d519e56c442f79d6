package entity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const DefaultSeed = 42

// JobInput carries both request variants; which one is active is decided by
// the fields that are present.
type JobInput struct {
	Image          string `json:"image,omitempty"`
	Mask           string `json:"mask,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	MaskURL        string `json:"mask_url,omitempty"`
	OutputLocation string `json:"output_location,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

type JobRequest struct {
	ID    string   `json:"id,omitempty"`
	Input JobInput `json:"input"`
}

type PayloadKind int

const (
	PayloadInline PayloadKind = iota
	PayloadRemote
)

func (k PayloadKind) String() string {
	if k == PayloadRemote {
		return "remote"
	}
	return "inline"
}

func (in JobInput) Kind() PayloadKind {
	if in.ImageURL != "" || in.MaskURL != "" || in.OutputLocation != "" {
		return PayloadRemote
	}
	return PayloadInline
}

// UnmarshalJSON accepts the seed as an integer, a float or a numeric string.
// A seed that is none of these is treated as absent.
func (in *JobInput) UnmarshalJSON(data []byte) error {
	type plain JobInput
	aux := struct {
		*plain
		Seed json.RawMessage `json:"seed,omitempty"`
	}{plain: (*plain)(in)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.Seed = parseSeed(aux.Seed)
	return nil
}

func parseSeed(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	seed := int(f)
	return &seed
}

func (in JobInput) SeedOr(def int) int {
	if in.Seed == nil {
		return def
	}
	return *in.Seed
}

type InlinePayload struct {
	Image string
	Mask  string
	Seed  int
}

type RemotePayload struct {
	ImageURL       string
	MaskURL        string
	OutputLocation string
	Seed           int
}

// JobState is the orchestrator state of a single job.
type JobState string

const (
	StateReceived   JobState = "RECEIVED"
	StateValidating JobState = "VALIDATING"
	StatePreparing  JobState = "PREPARING"
	StateInferring  JobState = "INFERRING"
	StateFinalizing JobState = "FINALIZING"
	StateSucceeded  JobState = "SUCCEEDED"
	StateFailed     JobState = "FAILED"
)

func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// JobResult is the outcome of one orchestrated job. Artifact is only set for
// successful inline jobs.
type JobResult struct {
	Kind     PayloadKind
	State    JobState
	Artifact []byte
	Err      error
}

func (r JobResult) Succeeded() bool {
	return r.Err == nil && r.State == StateSucceeded
}

type InlineOutput struct {
	GLBFile string `json:"glb_file,omitempty"`
	Error   string `json:"error,omitempty"`
}

type RemoteOutput struct {
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

// JobStatus is the queue-level status reported by /status.
type JobStatus string

const (
	StatusInQueue    JobStatus = "IN_QUEUE"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

type JobRecord struct {
	ID            string          `json:"id"`
	Status        JobStatus       `json:"status"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ExecutionTime int64           `json:"executionTime,omitempty"`
}

type SubmitResponse struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}
