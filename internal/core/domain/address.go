package domain

import "time"

// TrackedAddress is a generated receiving address the gateway holds keys for.
type TrackedAddress struct {
	Address     string     `json:"address"`
	KeyRef      string     `json:"key_ref"` // KeyID of the volatile key entry
	Balance     int64      `json:"balance"` // Lamports observed since the last sweep
	IsActive    bool       `json:"is_active"`
	LastSweptAt *time.Time `json:"last_swept_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CanReceive returns true if transfers to this address may be credited or swept.
func (a *TrackedAddress) CanReceive() bool {
	return a != nil && a.IsActive
}
