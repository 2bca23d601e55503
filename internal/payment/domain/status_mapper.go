package domain

import "strings"

// MapProviderStatus converts a provider status string into a LocalStatus.
// It is total: unknown or empty values map to StatusPending.
func MapProviderStatus(providerStatus string) LocalStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "approved", "authorized":
		return StatusApproved
	case "rejected":
		return StatusRejected
	case "cancelled":
		return StatusCancelled
	case "refunded", "charged_back":
		return StatusRefunded
	default:
		return StatusPending
	}
}
