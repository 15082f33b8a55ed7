package domain

import "fmt"

// WarningCode classifies a non-fatal anomaly found during a computation
type WarningCode string

const (
	WarningStaleReference WarningCode = "stale_reference"
	WarningDataIntegrity  WarningCode = "data_integrity"
	WarningInvalidInput   WarningCode = "invalid_input"
)

// Warning describes an anomaly that was resolved by excluding or clamping
// something rather than failing the whole computation.
type Warning struct {
	Code    WarningCode `json:"code"`
	Ref     string      `json:"ref,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Ref == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.Ref, w.Message)
}
