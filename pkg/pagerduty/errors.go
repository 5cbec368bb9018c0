package pagerduty

import "errors"

var (
	// ErrInvalidSignature indicates the webhook signature header is missing
	// or does not match the body.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrNotTriggerEvent indicates an event type other than incident.triggered.
	ErrNotTriggerEvent = errors.New("not an incident.triggered event")

	// ErrMalformedEvent indicates a body that cannot be turned into an alert.
	ErrMalformedEvent = errors.New("malformed webhook event")
)
