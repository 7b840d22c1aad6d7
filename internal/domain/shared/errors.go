package shared

// Error codes carried by DomainError
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
)

// DomainError is a caller error with a stable code
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so errors.Is works
// against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// InvalidInput wraps a validation failure
func InvalidInput(message string) *DomainError {
	return NewDomainError(CodeInvalidInput, message)
}

var (
	ErrInvalidInput = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrNotFound     = NewDomainError(CodeNotFound, "Resource not found")
	ErrConflict     = NewDomainError(CodeConflict, "Resource was modified by another process")
)
