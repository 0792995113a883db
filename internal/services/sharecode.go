package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	shareCodeMin         = 10000
	shareCodeMax         = 99999
	maxShareCodeAttempts = 10
	fallbackCodeLength   = 8
)

type ShareCodeChecker interface {
	ShareCodeExists(ctx context.Context, code string) (bool, error)
}

// ShareCodeAllocator hands out 5-digit codes while the namespace is sparse and
// degrades to 8-character codes once random picks keep colliding. The existence
// check is advisory; the unique index on file_records is what enforces uniqueness.
type ShareCodeAllocator struct {
	records ShareCodeChecker
	intN    func(n int) int
}

func NewShareCodeAllocator(records ShareCodeChecker) *ShareCodeAllocator {
	return &ShareCodeAllocator{records: records, intN: rand.IntN}
}

func (a *ShareCodeAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxShareCodeAttempts; attempt++ {
		code := strconv.Itoa(shareCodeMin + a.intN(shareCodeMax-shareCodeMin+1))

		taken, err := a.records.ShareCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%w: share code lookup: %w", ErrUpstream, err)
		}
		if !taken {
			return code, nil
		}
		shareCodeCollisions.Inc()
	}

	shareCodeFallbacks.Inc()
	return fallbackShareCode(), nil
}

func fallbackShareCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:fallbackCodeLength])
}
