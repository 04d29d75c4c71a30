package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors. All problems are
// collected and reported together so a user fixes the file in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the full configuration: both endpoints plus all shared
// settings. Used by the validate command.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateEndpoint("source", &c.Source)...)
	errors = append(errors, c.validateEndpoint("target", &c.Target)...)
	errors = append(errors, c.validateShared()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidateExport checks the settings the export pipeline needs: the source
// endpoint, output directory, and shared settings.
func (c *Config) ValidateExport() error {
	var errors ValidationErrors

	errors = append(errors, c.validateEndpoint("source", &c.Source)...)
	if c.Export.OutputDir == "" {
		errors = append(errors, ValidationError{
			Field:   "export.output_dir",
			Message: "output directory is required",
		})
	}
	errors = append(errors, c.validateShared()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidateImport checks the settings the import pipeline needs: the target
// endpoint, input directory, and shared settings.
func (c *Config) ValidateImport() error {
	var errors ValidationErrors

	errors = append(errors, c.validateEndpoint("target", &c.Target)...)
	if c.Import.InputDir == "" {
		errors = append(errors, ValidationError{
			Field:   "import.input_dir",
			Message: "input directory is required",
		})
	}
	errors = append(errors, c.validateShared()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateEndpoint(prefix string, ep *EndpointConfig) ValidationErrors {
	var errors ValidationErrors

	if ep.ServerURL == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".server_url",
			Message: "server URL is required",
		})
		return errors
	}

	u, err := url.Parse(ep.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".server_url",
			Message: fmt.Sprintf("invalid URL %q", ep.ServerURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".server_url",
			Message: fmt.Sprintf("unsupported scheme %q (http or https)", u.Scheme),
		})
	}

	return errors
}

func (c *Config) validateShared() ValidationErrors {
	var errors ValidationErrors

	if c.Processing.BatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.batch_size",
			Message: "batch size must be positive",
		})
	}

	if c.Advanced.MaxWorkers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "advanced.max_workers",
			Message: "max workers must be positive",
		})
	}
	if c.Advanced.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "advanced.max_retries",
			Message: "max retries cannot be negative",
		})
	}
	if c.Advanced.RetryDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "advanced.retry_delay",
			Message: "retry delay cannot be negative",
		})
	}
	if c.Advanced.RequestTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "advanced.request_timeout",
			Message: "request timeout must be positive",
		})
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q", c.Logging.Format),
		})
	}

	return errors
}
