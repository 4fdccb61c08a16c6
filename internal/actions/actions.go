// Package actions turns the agent's untrusted action list into a closed set
// of validated variants and applies them to the cart, customer, order and
// conversation state.
package actions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// ErrUnknownType marks an action type this build does not know.
var ErrUnknownType = errors.New("unknown action type")

// Action is one validated effect requested by the agent.
type Action interface {
	Type() enums.ActionType
}

// AddToCart adds quantity units of a catalog product to the live cart.
type AddToCart struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// RemoveFromCart lowers a cart line or drops it entirely.
type RemoveFromCart struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	// Quantity is nil when the whole line goes.
	Quantity *int `json:"quantity" validate:"omitempty,gt=0"`
}

// ClearCart empties the live cart.
type ClearCart struct{}

// SetState merges a partial patch into the conversation state.
type SetState struct {
	Patch types.Document `json:"patch"`
}

// UpdateCustomer writes one allow-listed profile field after validation.
type UpdateCustomer struct {
	Field fields.Field `json:"field" validate:"required,oneof=name address payment_method"`
	Value string       `json:"value"`
}

// AskInfo makes the next message the answer to Field.
type AskInfo struct {
	Field fields.Field `json:"field" validate:"required,max=64"`
}

// ShowLastOrder describes the most recent order.
type ShowLastOrder struct{}

// CancelLastOrder cancels the most recent order unless it is terminal.
type CancelLastOrder struct{}

// ModifyLastOrder moves the most recent order back into the cart.
type ModifyLastOrder struct{}

// ConfirmOrder commits the cart once every requirement is met.
type ConfirmOrder struct{}

func (AddToCart) Type() enums.ActionType       { return enums.ActionAddToCart }
func (RemoveFromCart) Type() enums.ActionType  { return enums.ActionRemoveFromCart }
func (ClearCart) Type() enums.ActionType       { return enums.ActionClearCart }
func (SetState) Type() enums.ActionType        { return enums.ActionSetState }
func (UpdateCustomer) Type() enums.ActionType  { return enums.ActionUpdateCustomer }
func (AskInfo) Type() enums.ActionType         { return enums.ActionAskInfo }
func (ShowLastOrder) Type() enums.ActionType   { return enums.ActionShowLastOrder }
func (CancelLastOrder) Type() enums.ActionType { return enums.ActionCancelLastOrder }
func (ModifyLastOrder) Type() enums.ActionType { return enums.ActionModifyLastOrder }
func (ConfirmOrder) Type() enums.ActionType    { return enums.ActionConfirmOrder }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// wire is the loose shape the agent sends. Numbers may arrive as JSON
// numbers or numeric strings.
type wire struct {
	Type      string          `json:"type"`
	ProductID json.RawMessage `json:"product_id"`
	Quantity  json.RawMessage `json:"quantity"`
	Patch     json.RawMessage `json:"patch"`
	Field     string          `json:"field"`
	Value     json.RawMessage `json:"value"`
}

// Parse validates one raw action. Unknown types return ErrUnknownType;
// malformed ones a CodeValidation error.
func Parse(raw json.RawMessage) (Action, error) {
	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode action")
	}
	typ, err := enums.ParseActionType(strings.ToUpper(strings.TrimSpace(w.Type)))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}

	var action Action
	switch typ {
	case enums.ActionAddToCart:
		id, err := intField(w.ProductID, "product_id")
		if err != nil {
			return nil, err
		}
		qty := int64(1)
		if present(w.Quantity) {
			if qty, err = intField(w.Quantity, "quantity"); err != nil {
				return nil, err
			}
		}
		action = AddToCart{ProductID: id, Quantity: int(qty)}
	case enums.ActionRemoveFromCart:
		id, err := intField(w.ProductID, "product_id")
		if err != nil {
			return nil, err
		}
		a := RemoveFromCart{ProductID: id}
		if present(w.Quantity) {
			qty, err := intField(w.Quantity, "quantity")
			if err != nil {
				return nil, err
			}
			n := int(qty)
			a.Quantity = &n
		}
		action = a
	case enums.ActionClearCart:
		action = ClearCart{}
	case enums.ActionSetState:
		patch := types.Document{}
		if present(w.Patch) {
			if err := json.Unmarshal(w.Patch, &patch); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "patch must be an object")
			}
		}
		action = SetState{Patch: patch}
	case enums.ActionUpdateCustomer:
		action = UpdateCustomer{Field: fields.Field(strings.TrimSpace(w.Field)), Value: stringField(w.Value)}
	case enums.ActionAskInfo:
		action = AskInfo{Field: fields.Field(strings.TrimSpace(w.Field))}
	case enums.ActionShowLastOrder:
		action = ShowLastOrder{}
	case enums.ActionCancelLastOrder:
		action = CancelLastOrder{}
	case enums.ActionModifyLastOrder:
		action = ModifyLastOrder{}
	case enums.ActionConfirmOrder:
		action = ConfirmOrder{}
	}

	if err := validate.Struct(action); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return action, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s action", typ))
	}
	return action, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// intField accepts 3, 3.0 or "3"; fractions and non-numbers are rejected.
func intField(raw json.RawMessage, name string) (int64, error) {
	if !present(raw) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	text := strings.TrimSpace(string(raw))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" must be an integer")
	}
	return int64(f), nil
}

func stringField(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
