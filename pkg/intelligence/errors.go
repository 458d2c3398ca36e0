package intelligence

import "fmt"

// InvalidModelSettingsError signals missing or invalid backend credentials
// or configuration. It is fatal to the attempt, surfaced to the user, and
// never retried automatically.
type InvalidModelSettingsError struct {
	Reason string
}

func (e *InvalidModelSettingsError) Error() string {
	return fmt.Sprintf("invalid model settings: %s", e.Reason)
}

// FreeTrialChatError signals that the trial token or trial service is
// unavailable. Same handling as InvalidModelSettingsError.
type FreeTrialChatError struct {
	Reason string
	Err    error
}

func (e *FreeTrialChatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("free trial chat: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("free trial chat: %s", e.Reason)
}

func (e *FreeTrialChatError) Unwrap() error {
	return e.Err
}

// UnknownIntelligenceTypeError is returned when deserializing a chat
// intelligence whose type tag was never registered.
type UnknownIntelligenceTypeError struct {
	Tag string
}

func (e *UnknownIntelligenceTypeError) Error() string {
	return fmt.Sprintf("unknown chat intelligence type: %s", e.Tag)
}
