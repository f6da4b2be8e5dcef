package config

import "errors"

// Configuration errors returned by Validate and the loaders. Validate wraps
// them with the offending value, so match with errors.Is.
var (
	ErrInvalidBaseURL      = errors.New("invalid base URL")
	ErrNoCategory          = errors.New("no category specified")
	ErrInvalidMode         = errors.New("invalid scrape mode")
	ErrInvalidPaging       = errors.New("invalid paging")
	ErrInvalidTiming       = errors.New("invalid timing")
	ErrInvalidRetry        = errors.New("invalid retry policy")
	ErrNoUserAgent         = errors.New("user agent cannot be empty")
	ErrNoEmptySelector     = errors.New("empty listing selector cannot be empty")
	ErrInvalidLimit        = errors.New("invalid limit")
	ErrInvalidOutputFormat = errors.New("output format must be json, csv, dual, or sqlite")

	// ErrConfigNotFound is returned when an explicit config file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
