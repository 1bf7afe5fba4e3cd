package phoneauth

import "errors"

var (
	// ErrNotConfigured indicates the provider endpoint or API key is missing
	ErrNotConfigured = errors.New("phoneauth: identity provider endpoint or api key not configured")
	// ErrInvalidPhone indicates the phone number is not in international format
	ErrInvalidPhone = errors.New("phoneauth: invalid phone number")
	// ErrInvalidResponse indicates the provider answered 2xx without the expected fields
	ErrInvalidResponse = errors.New("phoneauth: provider response is missing required fields")
	// ErrPollTimeout indicates the challenge was still pending after the attempt cap
	ErrPollTimeout = errors.New("phoneauth: challenge still pending after maximum attempts")
	// ErrUnknownChallenge indicates the token was not issued here or its binding expired
	ErrUnknownChallenge = errors.New("phoneauth: unknown or expired challenge")
	// ErrChallengeFailed indicates the provider reported a terminal failure
	ErrChallengeFailed = errors.New("phoneauth: challenge failed")
)
