package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound collapses sql.ErrNoRows into a (nil, nil) result.
// Find* methods use it so callers can treat a missing session or
// message as an ordinary outcome rather than an error.
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
