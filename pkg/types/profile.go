// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Profile is a caller's stored condition list and default location. The
// engine falls back to it when a request carries neither free text nor
// explicit terms.
type Profile struct {
	CallerID   string    `json:"caller_id" yaml:"caller_id"`
	Conditions []string  `json:"conditions" yaml:"conditions"`
	Location   *Location `json:"location,omitempty" yaml:"location,omitempty"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}
