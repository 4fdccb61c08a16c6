package enums

import "fmt"

// ActionType names an effect the agent may request.
type ActionType string

const (
	ActionAddToCart       ActionType = "ADD_TO_CART"
	ActionRemoveFromCart  ActionType = "REMOVE_FROM_CART"
	ActionClearCart       ActionType = "CLEAR_CART"
	ActionSetState        ActionType = "SET_STATE"
	ActionUpdateCustomer  ActionType = "UPDATE_CUSTOMER"
	ActionAskInfo         ActionType = "ASK_INFO"
	ActionShowLastOrder   ActionType = "SHOW_LAST_ORDER"
	ActionCancelLastOrder ActionType = "CANCEL_LAST_ORDER"
	ActionModifyLastOrder ActionType = "MODIFY_LAST_ORDER"
	ActionConfirmOrder    ActionType = "CONFIRM_ORDER"
)

var validActionTypes = []ActionType{
	ActionAddToCart,
	ActionRemoveFromCart,
	ActionClearCart,
	ActionSetState,
	ActionUpdateCustomer,
	ActionAskInfo,
	ActionShowLastOrder,
	ActionCancelLastOrder,
	ActionModifyLastOrder,
	ActionConfirmOrder,
}

// String implements fmt.Stringer.
func (a ActionType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActionType.
func (a ActionType) IsValid() bool {
	for _, candidate := range validActionTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActionType converts raw input into an ActionType.
func ParseActionType(value string) (ActionType, error) {
	for _, candidate := range validActionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid action type %q", value)
}
