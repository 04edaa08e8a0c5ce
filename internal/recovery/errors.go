package recovery

import "fmt"

// TransientError marks a failure that is expected to succeed on a later attempt
type TransientError struct {
	Message string
	Cause   error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient failure: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("transient failure: %s", e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// PermanentError marks a failure that will not succeed on retry
type PermanentError struct {
	Message string
	Cause   error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent failure: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("permanent failure: %s", e.Message)
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// Permanent wraps err so that Classify reports CategoryPermanent
func Permanent(message string, err error) error {
	return &PermanentError{Message: message, Cause: err}
}

// Transient wraps err so that Classify reports CategoryTransient
func Transient(message string, err error) error {
	return &TransientError{Message: message, Cause: err}
}

// ErrorDetails carries the raw error for diagnostic responses
type ErrorDetails struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorBody is a user-facing description of a failed operation
type ErrorBody struct {
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	Operation string        `json:"operation"`
	Details   *ErrorDetails `json:"details,omitempty"`
}

var categoryMessages = map[Category]string{
	CategoryTransient:   "A temporary error occurred. Please try again.",
	CategoryPermanent:   "Unable to process your request.",
	CategoryRateLimited: "Too many requests. Please wait and try again.",
	CategoryUnknown:     "An unexpected error occurred.",
}

// Describe turns err into a message and code chosen by its category. The raw error is only
// included when includeDetails is set.
func Describe(err error, operation string, includeDetails bool) ErrorBody {
	category := Classify(err)
	message, ok := categoryMessages[category]
	if !ok {
		message = "An error occurred."
	}

	body := ErrorBody{
		Code:      category.Code(),
		Message:   message,
		Operation: operation,
	}
	if includeDetails && err != nil {
		body.Details = &ErrorDetails{
			Type:    fmt.Sprintf("%T", err),
			Message: err.Error(),
		}
	}
	return body
}
