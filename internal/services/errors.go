package services

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrReleaseActive   = errors.New("a release is already running for this repository")
	ErrInvalidState    = errors.New("release is not in a state that allows this action")
	ErrInvalidArgument = errors.New("invalid argument")
)
