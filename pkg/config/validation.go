package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tag constraints (required fields, oneof
// enums, numeric ranges) and the cross-field rules those tags can't
// express: telemetry's endpoint is required only when enabled, and
// every restagecl/quota entry must reference a name the other side
// knows about.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry.enabled is true")
	}

	names := make(map[string]bool, len(cfg.RestageCLs))
	for _, rc := range cfg.RestageCLs {
		if names[rc.Name] {
			return fmt.Errorf("duplicate restagecl name %q", rc.Name)
		}
		names[rc.Name] = true
	}

	for _, q := range cfg.Quotas {
		if q.RestageLinkName != "" && !names[q.RestageLinkName] {
			return fmt.Errorf("quota for node %q references unknown restage_link_name %q", q.Node, q.RestageLinkName)
		}
	}

	return nil
}

// formatValidationError collapses validator's per-field errors into
// one aggregated message instead of failing on the first bad field.
func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
