package domain

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid discount service config")
	ErrSnapshotNotLoaded = errors.New("discount config snapshot not loaded")
	ErrOfferNotFound     = errors.New("no eligible offer for candidate")
	ErrAssignmentMissing = errors.New("discount assignment not found")
)
