package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrConflict is returned when a write would create a second open alert for
// the same (org, patient, channel) key.
var ErrConflict = errors.New("open alert already exists")

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
