// Package result defines the error taxonomy shared by the registry, the
// provider contract, and the write-back store. Public operations return
// discriminated envelopes built from these codes instead of raising errors
// across the API boundary.
package result

// Code classifies a failure. The set is closed; NETWORK_ERROR is reserved
// for providers backed by remote sources and unused by the core itself.
type Code string

const (
	CodeNotAvailable     Code = "NOT_AVAILABLE"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNoData           Code = "NO_DATA"
	CodeProviderError    Code = "PROVIDER_ERROR"
	CodeInvalidOptions   Code = "INVALID_OPTIONS"
	CodeNetworkError     Code = "NETWORK_ERROR"
)

// Error is the failure payload carried by unsuccessful envelopes.
type Error struct {
	Code            Code   `json:"code"`
	Message         string `json:"message"`
	Recoverable     bool   `json:"recoverable"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NotAvailable builds a NOT_AVAILABLE error.
func NotAvailable(msg string) *Error {
	return &Error{Code: CodeNotAvailable, Message: msg, Recoverable: false,
		SuggestedAction: "register a provider first"}
}

// PermissionDenied builds a PERMISSION_DENIED error.
func PermissionDenied(msg string) *Error {
	return &Error{Code: CodePermissionDenied, Message: msg, Recoverable: true,
		SuggestedAction: "request permission for this domain"}
}

// NoData builds a NO_DATA error.
func NoData(msg string) *Error {
	return &Error{Code: CodeNoData, Message: msg, Recoverable: true}
}

// ProviderError builds a PROVIDER_ERROR error.
func ProviderError(msg string) *Error {
	return &Error{Code: CodeProviderError, Message: msg, Recoverable: true,
		SuggestedAction: "retry or check provider health"}
}

// InvalidOptions builds an INVALID_OPTIONS error.
func InvalidOptions(msg string) *Error {
	return &Error{Code: CodeInvalidOptions, Message: msg, Recoverable: false}
}
