package constants

// Config flow error codes shown to the user in the setup form.
const (
	ErrorInvalidAuth   = "invalid_auth"
	ErrorCannotConnect = "cannot_connect"
	ErrorUnknown       = "unknown"
)

// Config flow abort reasons.
const (
	AbortAlreadyConfigured = "already_configured"
)

// Config flow result types.
const (
	ResultTypeForm        = "form"
	ResultTypeCreateEntry = "create_entry"
	ResultTypeAbort       = "abort"
)

// StepUser is the only step of the config flow.
const StepUser = "user"
