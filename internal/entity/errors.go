package entity

import "errors"

// ErrorKind classifies a job failure. It is itself an error so callers can
// match with errors.Is(err, entity.ErrFetch).
type ErrorKind string

func (k ErrorKind) Error() string {
	return string(k)
}

const (
	ErrValidation ErrorKind = "ValidationError"
	ErrDecode     ErrorKind = "DecodeError"
	ErrFetch      ErrorKind = "FetchError"
	ErrDelivery   ErrorKind = "DeliveryError"
	ErrModelInit  ErrorKind = "ModelInitError"
	ErrInference  ErrorKind = "InferenceError"
	ErrInternal   ErrorKind = "InternalError"
)

// Messages exposed to callers verbatim.
const (
	MsgInlineFieldsMissing = "Input must contain 'image' and 'mask' base64 strings."
	MsgRemoteFieldsMissing = "Input must contain 'image_url', 'mask_url' and 'output_location'."
	MsgNoMeshOutput        = "Model failed to generate GLB output."
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrIllegalTransition = errors.New("illegal job state transition")
)

// JobError is the failure value every pipeline component returns.
type JobError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewJobError(kind ErrorKind, message string, err error) *JobError {
	return &JobError{Kind: kind, Message: message, Err: err}
}

func (e *JobError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func (e *JobError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

// KindOf reports the failure class of err, ErrInternal for anything that is
// not a *JobError.
func KindOf(err error) ErrorKind {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return ErrInternal
}
