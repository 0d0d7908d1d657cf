// Package services defines the business logic for code-word matching,
// delivery dedupe, the direct-message pipeline, and paid access. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/bot layer.
package services

import "errors"

var (
	// ErrEntryNotFound indicates that no live code-word entry matches the
	// requested post or identifier.
	ErrEntryNotFound = errors.New("code word entry not found")

	// ErrEmptyCodeWord is returned when an admin operation supplies a blank
	// code word.
	ErrEmptyCodeWord = errors.New("code word is empty")

	// ErrInvalidMedia is returned when an entry's media type is not one of
	// photo, video, or document.
	ErrInvalidMedia = errors.New("media type must be photo, video or document")

	// ErrCodeNotFound indicates that an access code is unknown to the
	// paid-access ledger.
	ErrCodeNotFound = errors.New("access code not found")

	// ErrCodeNotPaid is returned when an access code exists but the payment
	// webhook has not confirmed it yet.
	ErrCodeNotPaid = errors.New("payment not confirmed")

	// ErrCodeClaimed is returned when an access code is already bound to a
	// different chat.
	ErrCodeClaimed = errors.New("access code claimed by another chat")
)
