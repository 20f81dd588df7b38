package service

import (
	"errors"
	"fmt"

	"armario-estampados/capture"
)

var (
	// ErrInvalidRequest marks caller input that can never succeed as sent
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound is returned for unknown or expired session ids
	ErrSessionNotFound = errors.New("session not found")
	// ErrSuperseded is returned by a background pass that a newer pass replaced
	ErrSuperseded = errors.New("background removal superseded by a newer pass")
	// ErrNothingToRender is returned when no side carries any element
	ErrNothingToRender = errors.New("no customized side to render")
	// ErrAssetNotLoaded is returned when a required asset never loaded into the page,
	// so the surface was never fully painted
	ErrAssetNotLoaded = fmt.Errorf("%w: required asset did not load", capture.ErrNotReady)
)
