// Package testutils provides deterministic generators for the Intersectx
// chat client test suite. These utilities ensure consistent test output while
// maintaining production format compatibility.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"intersectx/pkg/chattypes"

	"github.com/google/uuid"
)

var (
	// Thread-safe counter for deterministic ID generation
	idCounter uint64
	idMutex   sync.Mutex

	// Thread-safe counter for deterministic timestamp generation
	timeCounter int64
	timeMutex   sync.Mutex
)

// GenerateUUID generates a UUID that is deterministic in test mode but random
// in production. In test mode, returns UUIDs in format:
// 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, etc.
func GenerateUUID(ctx chattypes.Context) string {
	if ctx.IsTestMode() {
		return getDeterministicUUID()
	}
	return uuid.New().String()
}

// GetCurrentTime returns the current time, deterministic in test mode but
// real in production. In test mode, returns incrementing time starting from
// 2025-01-01T00:00:00Z so timestamps sort correctly.
func GetCurrentTime(ctx chattypes.Context) time.Time {
	if ctx.IsTestMode() {
		return getDeterministicTime()
	}
	return time.Now()
}

// getDeterministicUUID generates a deterministic UUID maintaining UUID v4 format.
func getDeterministicUUID() string {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++

	// Format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
	// Where 4 indicates version 4, and y is 8, 9, a, or b (we use 8)
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter)
}

// getDeterministicTime generates incrementing deterministic timestamps.
// Each call returns a time that is 1 second later than the previous call.
func getDeterministicTime() time.Time {
	timeMutex.Lock()
	defer timeMutex.Unlock()

	timeCounter++

	baseTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return baseTime.Add(time.Duration(timeCounter) * time.Second)
}

// ResetTestCounters resets the deterministic counters for testing.
// This should only be called from test code to ensure consistent test runs.
func ResetTestCounters() {
	idMutex.Lock()
	timeMutex.Lock()
	defer idMutex.Unlock()
	defer timeMutex.Unlock()

	idCounter = 0
	timeCounter = 0
}
