package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		producerNamingPolicy(),
		productionChannelPolicy(),
		uninstallRestrictionsPolicy(),
		transitiveOverridePolicy(),
	}
}

// producerNamingPolicy enforces ProducerSpec naming conventions.
func producerNamingPolicy() Policy {
	return Policy{
		Name:        "producer-naming",
		Description: "Enforces producer naming conventions (lowercase, alphanumeric, hyphens, and dots only)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package fplayout.policies.naming

import rego.v1

deny contains violation if {
	input.producer
	not regex.match("^[a-z0-9][a-z0-9.-]*$", input.producer)
	violation := {
		"message": sprintf("producer '%s' must be lowercase alphanumeric with dots or hyphens", [input.producer]),
		"severity": "error",
		"producer": input.producer,
	}
}`,
	}
}

// productionChannelPolicy warns against installing pre-release channels in
// a production context.
func productionChannelPolicy() Policy {
	return Policy{
		Name:        "production-channel",
		Description: "Warns when an install targets an alpha/beta/rc channel in production",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"channel", "production"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package fplayout.policies.channel

import rego.v1

deny contains violation if {
	input.context.operation == "install"
	input.context.environment == "production"
	regex.match("(alpha|beta|rc)", input.detail.location)
	violation := {
		"message": sprintf("producer %s targets a pre-release channel in production", [input.producer]),
		"severity": "warning",
		"producer": input.producer,
	}
}`,
	}
}

// uninstallRestrictionsPolicy blocks uninstalling a producer listed in the
// policy's fixed critical_producers set, unless this is a dry run.
func uninstallRestrictionsPolicy() Policy {
	return Policy{
		Name:        "uninstall-restrictions",
		Description: "Blocks uninstall of producers marked critical outside a dry run",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"uninstall", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package fplayout.policies.uninstall

import rego.v1

critical_producers := {"core-platform", "security-baseline"}

deny contains violation if {
	input.context.operation == "uninstall"
	input.producer in critical_producers
	not input.context.dry_run
	violation := {
		"message": sprintf("producer %s is marked critical and cannot be uninstalled", [input.producer]),
		"severity": "critical",
		"producer": input.producer,
	}
}`,
	}
}

// transitiveOverridePolicy warns when a caller installs a producer as
// direct that is already satisfied transitively at a different build,
// since that silently reshapes convergence for every dependent.
func transitiveOverridePolicy() Policy {
	return Policy{
		Name:        "transitive-override",
		Description: "Warns when a direct install overrides an existing transitive producer",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"install", "convergence"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package fplayout.policies.transitive

import rego.v1

deny contains violation if {
	input.context.operation == "install"
	input.detail.transitive == "false"
	input.detail.overrides_transitive == "true"
	violation := {
		"message": sprintf("install of %s promotes an existing transitive dependency to direct", [input.producer]),
		"severity": "warning",
		"producer": input.producer,
	}
}`,
	}
}
