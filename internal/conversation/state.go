package conversation

import (
	"time"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// Persisted document keys.
const (
	KeyStep                 = "step"
	KeyWaitingField         = "waiting_field"
	KeyAwaitingConfirmation = "awaiting_confirmation"
	KeyRecipientMode        = "recipient_mode"
	KeyRecipientName        = "recipient_name"
	KeyRecipientPhone       = "recipient_phone"
	KeyRecipientAddress     = "recipient_address"
	KeyDeliveryRaw          = "delivery_requested_raw"
	KeyDeliveryAt           = "delivery_requested_at"
	KeyLoopGuard            = "loop_guard"
	KeyOptedOut             = "opted_out"
	KeyOrderCompleted       = "order_completed"
)

// Phase is the tagged step of the dialogue. Only AskingInfo carries a
// waiting field, so a waiting field outside ASKING_INFO cannot be expressed.
type Phase interface {
	Step() enums.ConversationStep
}

// Unset means no order collection is in progress.
type Unset struct{}

// AskingInfo waits for the customer to answer one field.
type AskingInfo struct {
	WaitingField fields.Field
}

// AwaitingConfirmation waits for an explicit yes/cancel on the summary.
type AwaitingConfirmation struct{}

// Completed marks a freshly created order; it behaves as Unset on the next message.
type Completed struct{}

// NeedsHuman silences the bot until a merchant releases the conversation.
type NeedsHuman struct{}

func (Unset) Step() enums.ConversationStep      { return enums.ConversationStepUnset }
func (AskingInfo) Step() enums.ConversationStep { return enums.ConversationStepAskingInfo }
func (AwaitingConfirmation) Step() enums.ConversationStep {
	return enums.ConversationStepAwaitingConfirmation
}
func (Completed) Step() enums.ConversationStep  { return enums.ConversationStepCompleted }
func (NeedsHuman) Step() enums.ConversationStep { return enums.ConversationStepNeedsHuman }

// Draft is the recipient and delivery data collected for the next order.
type Draft struct {
	RecipientMode    enums.RecipientMode
	RecipientName    string
	RecipientPhone   string
	RecipientAddress string
	DeliveryRaw      string
	DeliveryAt       *time.Time
}

// LoopGuard counts consecutive failed answers to the same question.
type LoopGuard struct {
	Key   string
	Count int
}

// State is the typed view of the persisted conversation document.
type State struct {
	Phase          Phase
	Draft          Draft
	LoopGuard      *LoopGuard
	OptedOut       bool
	OrderCompleted bool
}

// WaitingField returns the solicited field, if any.
func (s State) WaitingField() (fields.Field, bool) {
	if p, ok := s.Phase.(AskingInfo); ok && p.WaitingField != "" {
		return p.WaitingField, true
	}
	return "", false
}

// AwaitingConfirmation reports whether the summary is pending confirmation.
func (s State) AwaitingConfirmation() bool {
	_, ok := s.Phase.(AwaitingConfirmation)
	return ok
}

// NeedsHuman reports whether a human handoff is active.
func (s State) NeedsHuman() bool {
	_, ok := s.Phase.(NeedsHuman)
	return ok
}

// Decode builds a State from a stored document, repairing combinations the
// typed model cannot express.
func Decode(doc types.Document) State {
	st := State{Phase: Unset{}}
	if doc == nil {
		return st
	}

	step, err := enums.ParseConversationStep(doc.String(KeyStep))
	if err != nil {
		step = enums.ConversationStepUnset
	}
	waiting := fields.Field(doc.String(KeyWaitingField))

	switch step {
	case enums.ConversationStepAskingInfo:
		if waiting != "" {
			st.Phase = AskingInfo{WaitingField: waiting}
		}
	case enums.ConversationStepAwaitingConfirmation:
		st.Phase = AwaitingConfirmation{}
	case enums.ConversationStepCompleted:
		st.Phase = Completed{}
	case enums.ConversationStepNeedsHuman:
		st.Phase = NeedsHuman{}
	default:
		// documents written by the agent may carry only one of the flags
		if waiting != "" {
			st.Phase = AskingInfo{WaitingField: waiting}
		} else if doc.Bool(KeyAwaitingConfirmation) {
			st.Phase = AwaitingConfirmation{}
		}
	}

	if mode, err := enums.ParseRecipientMode(doc.String(KeyRecipientMode)); err == nil {
		st.Draft.RecipientMode = mode
	}
	st.Draft.RecipientName = doc.String(KeyRecipientName)
	st.Draft.RecipientPhone = doc.String(KeyRecipientPhone)
	st.Draft.RecipientAddress = doc.String(KeyRecipientAddress)
	st.Draft.DeliveryRaw = doc.String(KeyDeliveryRaw)
	if raw := doc.String(KeyDeliveryAt); raw != "" {
		if at, err := time.Parse(time.RFC3339, raw); err == nil {
			st.Draft.DeliveryAt = &at
		}
	}

	st.LoopGuard = decodeLoopGuard(doc[KeyLoopGuard])
	st.OptedOut = doc.Bool(KeyOptedOut)
	st.OrderCompleted = doc.Bool(KeyOrderCompleted)
	return st
}

func decodeLoopGuard(v any) *LoopGuard {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	key, _ := m["key"].(string)
	if key == "" {
		return nil
	}
	count := 0
	switch c := m["count"].(type) {
	case float64:
		count = int(c)
	case int:
		count = c
	case int64:
		count = int(c)
	}
	return &LoopGuard{Key: key, Count: count}
}

// Encode renders the full document for s.
func (s State) Encode() types.Document {
	doc := PhasePatch(s.Phase)
	for k, v := range DraftPatch(s.Draft) {
		doc[k] = v
	}
	doc[KeyLoopGuard] = LoopGuardValue(s.LoopGuard)
	if s.OptedOut {
		doc[KeyOptedOut] = true
	}
	if s.OrderCompleted {
		doc[KeyOrderCompleted] = true
	}
	for k, v := range doc {
		if v == nil {
			delete(doc, k)
		}
	}
	return doc
}

// PhasePatch writes step, waiting_field and awaiting_confirmation together so
// a merge can never leave them inconsistent. Nil values delete keys.
func PhasePatch(p Phase) types.Document {
	if p == nil {
		p = Unset{}
	}
	patch := types.Document{
		KeyStep:                 nil,
		KeyWaitingField:         nil,
		KeyAwaitingConfirmation: nil,
	}
	if step := p.Step(); step != enums.ConversationStepUnset {
		patch[KeyStep] = string(step)
	}
	switch v := p.(type) {
	case AskingInfo:
		patch[KeyWaitingField] = string(v.WaitingField)
	case AwaitingConfirmation:
		patch[KeyAwaitingConfirmation] = true
	}
	return patch
}

// DraftPatch writes every draft key; empty values delete.
func DraftPatch(d Draft) types.Document {
	patch := types.Document{
		KeyRecipientMode:    nilIfEmpty(string(d.RecipientMode)),
		KeyRecipientName:    nilIfEmpty(d.RecipientName),
		KeyRecipientPhone:   nilIfEmpty(d.RecipientPhone),
		KeyRecipientAddress: nilIfEmpty(d.RecipientAddress),
		KeyDeliveryRaw:      nilIfEmpty(d.DeliveryRaw),
		KeyDeliveryAt:       nil,
	}
	if d.DeliveryAt != nil {
		patch[KeyDeliveryAt] = d.DeliveryAt.Format(time.RFC3339)
	}
	return patch
}

// LoopGuardValue encodes the guard for a patch; nil deletes it.
func LoopGuardValue(g *LoopGuard) any {
	if g == nil {
		return nil
	}
	return map[string]any{"key": g.Key, "count": g.Count}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// allowedPatchKeys are the keys an external SET_STATE may touch.
var allowedPatchKeys = map[string]struct{}{
	KeyStep: {}, KeyWaitingField: {}, KeyAwaitingConfirmation: {}, KeyRecipientMode: {},
	KeyRecipientName: {}, KeyRecipientPhone: {}, KeyRecipientAddress: {}, KeyDeliveryRaw: {},
	KeyDeliveryAt: {}, KeyLoopGuard: {}, KeyOptedOut: {}, KeyOrderCompleted: {},
}

// SanitizePatch keeps only known keys and rewrites the phase keys so the
// result respects the step invariants once merged onto current.
func SanitizePatch(current State, patch types.Document) types.Document {
	clean := types.Document{}
	for k, v := range patch {
		if _, ok := allowedPatchKeys[k]; ok {
			clean[k] = v
		}
	}
	_, touchesStep := clean[KeyStep]
	_, touchesWaiting := clean[KeyWaitingField]
	_, touchesAwaiting := clean[KeyAwaitingConfirmation]
	if !touchesStep && !touchesWaiting && !touchesAwaiting {
		return clean
	}

	merged := current.Encode()
	for k, v := range clean {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	// an explicit new step wins over stale flags from the old phase
	if touchesStep {
		step := merged.String(KeyStep)
		if !touchesWaiting && step != string(enums.ConversationStepAskingInfo) {
			delete(merged, KeyWaitingField)
		}
		if !touchesAwaiting && step != string(enums.ConversationStepAwaitingConfirmation) {
			delete(merged, KeyAwaitingConfirmation)
		}
	}
	for k, v := range PhasePatch(Decode(merged).Phase) {
		clean[k] = v
	}
	return clean
}
