package leads

import "errors"

var (
	// ErrMissingContact is returned when paypal or whatsapp is blank
	ErrMissingContact = errors.New("paypal and whatsapp are required")

	// ErrManualRequiresSession is returned when an anonymous caller submits a manual lead
	ErrManualRequiresSession = errors.New("manual leads require an authenticated session")

	// ErrMissingID is returned when a delete names no lead
	ErrMissingID = errors.New("lead id is required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)
