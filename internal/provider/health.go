// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package provider

import (
	"sync"
	"time"

	radchaterr "github.com/radchat/radchat/pkg/errors"
	"github.com/radchat/radchat/pkg/health"
)

// HealthMetrics is the snapshot type reported by HealthReporter.
type HealthMetrics = health.Metrics

// DefaultHealthCooldown is how long an adapter is reported unavailable after
// an upstream failure.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records upstream outcomes for one adapter. A failure marks
// the adapter unavailable until the cooldown elapses or a later round trip
// succeeds. Availability is informational; requests are never refused.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	successCount int64
	nowFunc      func() time.Time
}

// NewHealthTracker creates a tracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, radchaterr.Errorf(radchaterr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// caller holds h.mu
func (h *HealthTracker) availableLocked() bool {
	return h.healthy || h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.availableLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.successCount++
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// Record is a convenience for callers that only have the round-trip error.
func (h *HealthTracker) Record(err error) {
	if err != nil {
		h.RecordFailure()
		return
	}
	h.RecordSuccess()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// HealthMetrics returns a point-in-time snapshot.
func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{
		FailureCount: h.failureCount,
		SuccessCount: h.successCount,
		Available:    h.availableLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}
