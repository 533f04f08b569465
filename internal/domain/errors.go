package domain

import "fmt"

// Category sentinels. Operations wrap these with DomainError so callers can
// branch with errors.Is while the tool boundary still gets a readable message.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate name")
	ErrNoEndpoint   = fmt.Errorf("no health check URL configured")
	ErrNoEnvs       = fmt.Errorf("project has no environments")
	ErrSchema       = fmt.Errorf("record failed schema validation")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrStoreClosed  = fmt.Errorf("store is closed")
	ErrDecryption   = fmt.Errorf("decryption failed")
	ErrToolNotFound = fmt.Errorf("tool not found")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g. "FileStore.AddProject")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
