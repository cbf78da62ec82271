// Package policy provides Open Policy Agent (OPA) integration for the
// provisioning layout engine.
//
// It implements an optional gate evaluated before install/uninstall/apply
// mutations, using the Rego policy language. It includes built-in policies
// for common governance requirements and supports loading custom policies
// from files.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined policies for common requirements
//
// # Usage
//
// Creating a policy engine and wiring it into a layout:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	deps.Policy = engine // pkg/layout.Dependencies
//
// Evaluating a mutation directly:
//
//	result, err := engine.Evaluate(ctx, "install", producer, map[string]string{
//	    "location": loc.String(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "/etc/fplayout/policies",
//	    "/opt/policies/custom.rego",
//	}
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. producer-naming - Enforces ProducerSpec naming conventions
//  2. production-channel - Warns on pre-release channels in production
//  3. uninstall-restrictions - Blocks uninstalling producers marked critical
//  4. transitive-override - Warns when install promotes a transitive dependency
//
// # Custom Policies
//
// Custom policies can be written in Rego and loaded from files:
//
//	package custom.policies.backup
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.context.operation == "uninstall"
//	    not input.detail.backup_confirmed
//
//	    violation := {
//	        "message": "uninstall requires a confirmed backup",
//	        "severity": "error",
//	        "producer": input.producer,
//	    }
//	}
//
// # Policy Evaluation Points
//
// The gate is evaluated once per mutation call: each install, each
// uninstall, and each install/uninstall entry inside an apply plan.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//  - info: Informational messages
//  - warning: Issues that should be reviewed but don't block operations
//  - error: Issues that block operations
//  - critical: Severe issues requiring immediate attention
//
// # Performance
//
// Policy modules are parsed and compiled when they are loaded. Each
// evaluation builds a fresh rego query over the loaded modules and runs
// it; no prepared query is reused between evaluations.
//
// # Context Injection
//
// PolicyContext carries these fields:
//
//  - User: Who initiated the operation
//  - Environment: Target environment (production, staging, etc.)
//  - Operation: install, uninstall, or apply
//  - Timestamp: When the evaluation occurred
//  - Dry run: Whether this is a dry-run evaluation
//
// Evaluate fills in Operation and Timestamp only; User, Environment and
// Dry run keep their zero values in the policy input.
package policy
