package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// knownStrategies lists the accepted uploader strategy names.
// "" and "none" both mean uploads are disabled.
var knownStrategies = map[string]bool{
	"":       true,
	"none":   true,
	"imgur":  true,
	"catbox": true,
	"custom": true,
}

// ValidateConfig performs a full validation pass and reports every
// problem found, not just the first.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if upErrs := validateUploader(&c.Uploader); len(upErrs) > 0 {
		errs = append(errs, upErrs...)
	}
	if hErrs := validateHistory(&c.History); len(hErrs) > 0 {
		errs = append(errs, hErrs...)
	}
	if nErrs := validateNotify(&c.Notify); len(nErrs) > 0 {
		errs = append(errs, nErrs...)
	}
	if iErrs := validateIPC(&c.IPC); len(iErrs) > 0 {
		errs = append(errs, iErrs...)
	}
	if lErrs := validateLogging(&c.Logging); len(lErrs) > 0 {
		errs = append(errs, lErrs...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateUploader(u *UploaderConfig) ValidationErrors {
	var errs ValidationErrors

	if !knownStrategies[u.Strategy] {
		errs = append(errs, ValidationError{
			Field:   "uploader.strategy",
			Message: fmt.Sprintf("unknown strategy %q (want imgur, catbox, custom, or none)", u.Strategy),
		})
	}

	switch u.Strategy {
	case "imgur":
		if u.ClientID == "" && u.Credential == "" {
			errs = append(errs, ValidationError{
				Field:   "uploader.client_id",
				Message: "imgur needs a client_id (anonymous) or a credential (authenticated)",
			})
		}
	case "custom":
		if u.SpecPath == "" {
			errs = append(errs, ValidationError{
				Field:   "uploader.spec_path",
				Message: "custom strategy needs a provider spec file",
			})
		}
	}

	if u.TimeoutSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "uploader.timeout_sec",
			Message: "must be positive",
		})
	}
	if u.MaxUploadMB <= 0 {
		errs = append(errs, ValidationError{
			Field:   "uploader.max_upload_mb",
			Message: "must be positive",
		})
	}

	return errs
}

func validateHistory(h *HistoryConfig) ValidationErrors {
	if h.Enabled && h.Path == "" {
		return ValidationErrors{{
			Field:   "history.path",
			Message: "required when history is enabled",
		}}
	}
	return nil
}

func validateNotify(n *NotifyConfig) ValidationErrors {
	if n.TimeoutMS < 0 {
		return ValidationErrors{{
			Field:   "notify.timeout_ms",
			Message: "must not be negative",
		}}
	}
	return nil
}

func validateIPC(i *IPCConfig) ValidationErrors {
	var errs ValidationErrors
	if i.SocketPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ipc.socket_path",
			Message: "required",
		})
	}
	if i.TimeoutSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ipc.timeout_sec",
			Message: "must be positive",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", l.Level),
		})
	}

	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", l.Format),
		})
	}

	output := strings.ToLower(l.Output)
	switch output {
	case "", "stdout", "stderr", "file", "both":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", l.Output),
		})
	}

	if (output == "file" || output == "both") && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "required when output includes file",
		})
	}

	return errs
}
