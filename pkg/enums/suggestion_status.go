package enums

import "fmt"

// SuggestionStatus tracks moderation state of a community book suggestion.
type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "pending"
	SuggestionStatusFulfilled SuggestionStatus = "fulfilled"
	SuggestionStatusRejected  SuggestionStatus = "rejected"
)

var validSuggestionStatuses = []SuggestionStatus{
	SuggestionStatusPending,
	SuggestionStatusFulfilled,
	SuggestionStatusRejected,
}

// String implements fmt.Stringer.
func (s SuggestionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SuggestionStatus.
func (s SuggestionStatus) IsValid() bool {
	for _, candidate := range validSuggestionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSuggestionStatus converts raw input into a SuggestionStatus.
func ParseSuggestionStatus(value string) (SuggestionStatus, error) {
	for _, candidate := range validSuggestionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid suggestion status %q", value)
}
