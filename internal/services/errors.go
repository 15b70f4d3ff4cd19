// Package services defines the business logic for bot lifecycle management.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; mapping to
// exit codes or HTTP statuses happens at the caller.
package services

import "errors"

var (
	// ErrBotNotFound indicates that the requested bot does not exist.
	ErrBotNotFound = errors.New("bot not found")

	// ErrInvalidToken is returned when the platform rejects a bot token
	// during registration.
	ErrInvalidToken = errors.New("invalid bot token")

	// ErrDuplicateBot is returned when the token being registered already
	// belongs to a known bot.
	ErrDuplicateBot = errors.New("bot already registered")
)
