package enums

import "fmt"

// ConversationStep is the persisted tag of the order collection dialogue.
// The zero value means no step is active.
type ConversationStep string

const (
	ConversationStepUnset                ConversationStep = ""
	ConversationStepAskingInfo           ConversationStep = "ASKING_INFO"
	ConversationStepAwaitingConfirmation ConversationStep = "AWAITING_CONFIRMATION"
	ConversationStepCompleted            ConversationStep = "COMPLETED"
	ConversationStepNeedsHuman           ConversationStep = "NEEDS_HUMAN"
)

var validConversationSteps = []ConversationStep{
	ConversationStepUnset,
	ConversationStepAskingInfo,
	ConversationStepAwaitingConfirmation,
	ConversationStepCompleted,
	ConversationStepNeedsHuman,
}

// String implements fmt.Stringer.
func (s ConversationStep) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ConversationStep.
func (s ConversationStep) IsValid() bool {
	for _, candidate := range validConversationSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseConversationStep converts raw input into a ConversationStep.
func ParseConversationStep(value string) (ConversationStep, error) {
	for _, candidate := range validConversationSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversation step %q", value)
}
