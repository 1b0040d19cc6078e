// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate photo acquisition settings
	if err := validatePhotoSettings(&settings.Photos); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate retry settings
	if err := validateRetrySettings(&settings.Retry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry is enabled but no DSN is configured")
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validatePhotoSettings validates search and rotation settings
func validatePhotoSettings(settings *PhotoSettings) error {
	var errs []string

	if strings.TrimSpace(settings.Query) == "" {
		errs = append(errs, "photo query must not be empty")
	}

	if settings.Interval < 1 {
		errs = append(errs, fmt.Sprintf("rotation interval must be at least 1 second, got %d", settings.Interval))
	}

	if u, err := url.Parse(settings.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid photo search base URL: %q", settings.BaseURL))
	}

	if settings.SearchPath == "" {
		errs = append(errs, "photo search path must not be empty")
	}

	if settings.PageCap < 1 {
		errs = append(errs, "page cap must be at least 1")
	}

	if settings.MaxPageRetries < 1 {
		errs = append(errs, "max page retries must be at least 1")
	}

	if settings.PerPage < 1 || settings.PerPage > 30 {
		errs = append(errs, fmt.Sprintf("photos per page must be between 1 and 30, got %d", settings.PerPage))
	}

	if settings.RateLimit < 0 {
		errs = append(errs, "rate limit must not be negative")
	}

	if settings.Timeout < 0 {
		errs = append(errs, "request timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("photo settings errors: %v", errs)
	}
	return nil
}

// validateRetrySettings validates backoff parameters
func validateRetrySettings(settings *RetrySettings) error {
	var errs []string

	if settings.MaxRetries < 0 || settings.MaxRetries > 10 {
		errs = append(errs, fmt.Sprintf("max retries must be between 0 and 10, got %d", settings.MaxRetries))
	}

	if settings.InitialDelay <= 0 {
		errs = append(errs, "initial retry delay must be positive")
	}

	if settings.MaxDelay < settings.InitialDelay {
		errs = append(errs, fmt.Sprintf("max retry delay %v is shorter than initial delay %v", settings.MaxDelay, settings.InitialDelay))
	}

	if settings.Jitter < 0 || settings.Jitter >= 1 {
		errs = append(errs, fmt.Sprintf("retry jitter must be in [0, 1), got %v", settings.Jitter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("retry settings errors: %v", errs)
	}
	return nil
}

// validateOutputSettings validates the datastore selection
func validateOutputSettings(settings *OutputSettings) error {
	if settings.SQLite.Enabled && settings.MySQL.Enabled {
		return errors.New("only one of SQLite or MySQL output can be enabled")
	}
	if !settings.SQLite.Enabled && !settings.MySQL.Enabled {
		return errors.New("either SQLite or MySQL output must be enabled")
	}
	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		return errors.New("SQLite path must not be empty")
	}
	if settings.MySQL.Enabled {
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			return errors.New("MySQL host and database must be set")
		}
	}
	return nil
}

// validateWebServerSettings validates the HTTP API listen address
func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("invalid webserver listen address %q: %w", settings.Listen, err)
	}
	return nil
}
