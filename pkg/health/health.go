// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package health

import "time"

// Metrics is a point-in-time view of one model adapter's upstream health,
// safe to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	SuccessCount  int64      `json:"success_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}
