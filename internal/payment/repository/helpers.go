package repository

import "encoding/json"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nullableJSON stores an absent provider response as NULL rather than an empty document.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func amountOrZero(amount string) string {
	if amount == "" {
		return "0"
	}
	return amount
}
