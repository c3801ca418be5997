package basin

import (
	"errors"
	"fmt"
)

// ErrNoData is reported when the remote source returned an empty dataset.
var ErrNoData = errors.New("no data returned by the ONS client")

// ClientError is any failure to communicate with or interpret the remote
// metadata/data source. ResourceNotFoundError and DataProcessingError both
// unwrap to a *ClientError, so errors.As(err, &clientErr) matches all three.
type ClientError struct {
	Msg string
	Err error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ClientError) Unwrap() error { return e.Err }

// ResourceNotFoundError means the metadata manifest has no resource for the
// requested year.
type ResourceNotFoundError struct {
	Year int
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("No resource found for year %d.", e.Year)
}

func (e *ResourceNotFoundError) Unwrap() error {
	return &ClientError{Msg: e.Error()}
}

// DataProcessingError is a failure while downloading or parsing a located
// resource.
type DataProcessingError struct {
	Year int
	Msg  string
	Err  error
}

func (e *DataProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DataProcessingError) Unwrap() error {
	return &ClientError{Msg: e.Msg, Err: e.Err}
}

// NewClientError wraps err as a *ClientError.
func NewClientError(msg string, err error) error {
	return &ClientError{Msg: msg, Err: err}
}

// IsClientError reports whether err is any kind of client error.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsResourceNotFound reports whether err is a *ResourceNotFoundError.
func IsResourceNotFound(err error) bool {
	var nf *ResourceNotFoundError
	return errors.As(err, &nf)
}

// IsDataProcessing reports whether err is a *DataProcessingError.
func IsDataProcessing(err error) bool {
	var dp *DataProcessingError
	return errors.As(err, &dp)
}
