package store

import "errors"

var (
	ErrNotFound  = errors.New("store: account not found")
	ErrInvalidID = errors.New("store: invalid account id")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
