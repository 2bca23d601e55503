package domain

// ReconcileReason classifies the result of a reconciliation.
type ReconcileReason string

const (
	ReasonOK                  ReconcileReason = "ok"
	ReasonNotActionable       ReconcileReason = "not_actionable"
	ReasonProviderUnavailable ReconcileReason = "provider_unavailable"
	ReasonRecordNotFound      ReconcileReason = "record_not_found"
)

// ReconcileResult describes what a reconciliation did.
type ReconcileResult struct {
	OK        bool
	Reason    ReconcileReason
	Status    LocalStatus
	OrderID   int64
	PaymentID string
	// Changed is true when the local record moved to a new status.
	Changed bool
}

// Retryable reports whether trying again later may produce a different result.
func (r *ReconcileResult) Retryable() bool {
	return r.Reason == ReasonProviderUnavailable
}
