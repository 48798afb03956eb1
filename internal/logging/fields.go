package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldIdentity is the daemon identity a log line belongs to.
	FieldIdentity = "identity"
	// FieldInstanceID identifies one process attempt holding a liveness flag.
	FieldInstanceID = "instance_id"
	// FieldEventType is a stable machine-readable name for the logged event.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCause is the shutdown trigger.
	FieldCause = "cause"
)
