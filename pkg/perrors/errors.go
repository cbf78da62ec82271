// Package perrors defines the single tagged error type used across the
// provisioning layout engine: one struct, one enum of reason codes,
// structured details, and an Unwrap chain.
package perrors

import (
	"errors"
	"fmt"
)

// Reason discriminates the kind of provisioning failure.
type Reason string

const (
	// ReasonUnknownFeaturePack: an FPID was referenced that could not be
	// resolved to an archive.
	ReasonUnknownFeaturePack Reason = "unknown_feature_pack"

	// ReasonUnsatisfiedDependency: a transitive dependency was never
	// materialized and cleanup was not requested.
	ReasonUnsatisfiedDependency Reason = "unsatisfied_feature_pack_dependency"

	// ReasonPatchAlreadyApplied: the same patch FPID was loaded twice.
	ReasonPatchAlreadyApplied Reason = "patch_already_applied"

	// ReasonPatchNotApplicable: a patch's declared target is not
	// installed.
	ReasonPatchNotApplicable Reason = "patch_not_applicable"

	// ReasonVersionConflict: convergence could not settle on a single
	// build or channel for a producer.
	ReasonVersionConflict Reason = "version_conflict"

	// ReasonTransitiveDependencyNotFound: batched list of producers whose
	// transitive dependency could not be found and cleanup was not
	// requested.
	ReasonTransitiveDependencyNotFound Reason = "transitive_dependency_not_found"

	// ReasonPluginOptionRequired: a plugin-declared required option was
	// left unset.
	ReasonPluginOptionRequired Reason = "plugin_option_required"

	// ReasonPluginOptionIllegalValue: a supplied option value is not
	// among the plugin's allowed values.
	ReasonPluginOptionIllegalValue Reason = "plugin_option_illegal_value"

	// ReasonPluginOptionsNotRecognised: one or more user-supplied options
	// are claimed by no discovered plugin and cleanup was not requested.
	ReasonPluginOptionsNotRecognised Reason = "plugin_options_not_recognised"

	// ReasonArtifactResolverMissing: no ArtifactResolver is registered
	// for a repository id a feature pack's plugin or patch references.
	ReasonArtifactResolverMissing Reason = "artifact_resolver_missing"

	// ReasonCopyFailed: a work-area copy operation failed.
	ReasonCopyFailed Reason = "copy_failed"

	// ReasonMkdirFailed: a work-area directory could not be created.
	ReasonMkdirFailed Reason = "mkdir_failed"

	// ReasonReadDirFailed: a directory listing failed during aggregation.
	ReasonReadDirFailed Reason = "read_dir_failed"

	// ReasonConfigInvalid: the configuration option or value is
	// structurally invalid (e.g. an unrecognised VERSION_CONVERGENCE
	// value).
	ReasonConfigInvalid Reason = "config_invalid"
)

// Error is the single tagged provisioning error type. Every failure raised
// by this module is an *Error, discriminated by Reason.
type Error struct {
	// Reason classifies the failure for programmatic handling.
	Reason Reason

	// Message is the human-readable summary.
	Message string

	// Producer is the producer involved, if applicable.
	Producer string

	// FPID is the feature-pack identity involved, if applicable.
	FPID string

	// Path is the filesystem path involved, for I/O reasons.
	Path string

	// Details carries reason-specific structured payloads, e.g. the
	// conflict map for ReasonVersionConflict
	// (map[string][]string, producer -> conflicting FPIDs) or the list
	// of producers for ReasonTransitiveDependencyNotFound.
	Details map[string]interface{}

	// Err is the wrapped underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Producer != "" && e.FPID != "":
		return fmt.Sprintf("[%s] %s (producer=%s, fpid=%s)%s", e.Reason, e.Message, e.Producer, e.FPID, e.suffix())
	case e.Producer != "":
		return fmt.Sprintf("[%s] %s (producer=%s)%s", e.Reason, e.Message, e.Producer, e.suffix())
	case e.FPID != "":
		return fmt.Sprintf("[%s] %s (fpid=%s)%s", e.Reason, e.Message, e.FPID, e.suffix())
	case e.Path != "":
		return fmt.Sprintf("[%s] %s (path=%s)%s", e.Reason, e.Message, e.Path, e.suffix())
	default:
		return fmt.Sprintf("[%s] %s%s", e.Reason, e.Message, e.suffix())
	}
}

func (e *Error) suffix() string {
	if e.Err == nil {
		return ""
	}
	return ": " + e.Err.Error()
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports equality by reason code, matching EngineError's Is semantics.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Reason == t.Reason
}

// New constructs a bare Error for a reason.
func New(reason Reason, message string) *Error {
	return &Error{Reason: reason, Message: message}
}

// Wrap constructs an Error wrapping an underlying error.
func Wrap(reason Reason, message string, err error) *Error {
	return &Error{Reason: reason, Message: message, Err: err}
}

// WithProducer attaches producer context.
func (e *Error) WithProducer(producer string) *Error {
	e.Producer = producer
	return e
}

// WithFPID attaches a feature-pack identity.
func (e *Error) WithFPID(fpid string) *Error {
	e.FPID = fpid
	return e
}

// WithPath attaches a filesystem path.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithDetail attaches a structured detail field.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Is reports whether err is a provisioning error with the given reason.
func Is(err error, reason Reason) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason == reason
	}
	return false
}

// VersionConflict builds the batched conflict error of §7/§8: the full map
// of producer -> disagreeing FPIDs accumulated across an entire build, not
// raised fail-fast on the first conflict.
func VersionConflict(conflicts map[string][]string) *Error {
	return New(ReasonVersionConflict, "version convergence failed for one or more producers").
		WithDetail("conflicts", conflicts)
}

// TransitiveDependencyNotFound builds the batched not-found error of
// §4.2.2/§7: the full list of producers whose transitive dependency could
// not be satisfied, accumulated across the whole build.
func TransitiveDependencyNotFound(producers []string) *Error {
	return New(ReasonTransitiveDependencyNotFound, "transitive dependency not found").
		WithDetail("producers", producers)
}

// PluginOptionsNotRecognised builds the batched error of §4.5 step 4.
func PluginOptionsNotRecognised(names []string) *Error {
	return New(ReasonPluginOptionsNotRecognised, "one or more options are not recognised by any installed plugin").
		WithDetail("options", names)
}
