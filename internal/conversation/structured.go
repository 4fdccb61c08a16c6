package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/wacommerce-backend/internal/customers"
	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// HandleStructured consumes text as the answer to the waiting field when
// one is set. handled is false when there is no waiting field, or when a
// valid answer arrives for a field the machine does not store itself
// (phone, default, unknown); the waiting field is then cleared and the
// message belongs to the agent.
func (m *Machine) HandleStructured(ctx context.Context, sess *Session, text string) (reply Reply, handled bool, err error) {
	field, ok := sess.State.WaitingField()
	if !ok {
		return Reply{}, false, nil
	}

	switch field {
	case fields.RecipientMode:
		mode, ok := ParseRecipientMode(text)
		if !ok {
			reply, err = m.Fail(ctx, sess, field, "")
			return reply, true, err
		}
		patch := types.Document{KeyRecipientMode: string(mode), KeyLoopGuard: nil}
		if mode == enums.RecipientModeSelf {
			patch[KeyRecipientName] = nil
			patch[KeyRecipientPhone] = nil
			patch[KeyRecipientAddress] = nil
		}
		reply, err = m.succeed(ctx, sess, patch)
		return reply, true, err

	case fields.Name, fields.Address, fields.PaymentMethod:
		if err := m.customers.UpdateField(ctx, sess.Customer, field, text); err != nil {
			if errors.Is(err, customers.ErrInvalidValue) {
				reply, err = m.Fail(ctx, sess, field, "")
				return reply, true, err
			}
			return Reply{}, true, err
		}
		reply, err = m.succeed(ctx, sess, types.Document{KeyLoopGuard: nil})
		return reply, true, err

	case fields.RecipientName, fields.RecipientPhone, fields.RecipientAddress:
		if !fields.Validate(field, text) {
			reply, err = m.Fail(ctx, sess, field, "")
			return reply, true, err
		}
		value := strings.TrimSpace(text)
		if field == fields.RecipientPhone {
			value = fields.DigitsOnly(value)
		}
		reply, err = m.succeed(ctx, sess, types.Document{string(field): value, KeyLoopGuard: nil})
		return reply, true, err

	case fields.Delivery:
		reply, err = m.handleDelivery(ctx, sess, text)
		return reply, true, err
	}

	// Phone, default and unknown fields are answered for the agent: the
	// shape is checked here, the value is the agent's to use.
	if !fields.Validate(field, text) {
		hint := msgGenericQuestion
		if _, ok := clarifications[field]; ok {
			hint = ""
		}
		reply, err = m.Fail(ctx, sess, field, hint)
		return reply, true, err
	}
	patch := PhasePatch(Unset{})
	patch[KeyLoopGuard] = nil
	return Reply{}, false, m.Patch(ctx, sess, patch)
}

func (m *Machine) handleDelivery(ctx context.Context, sess *Session, text string) (Reply, error) {
	if !fields.Validate(fields.Delivery, text) {
		return m.Fail(ctx, sess, fields.Delivery, "")
	}
	at, ok := m.parser.Parse(text)
	if !ok {
		return m.Fail(ctx, sess, fields.Delivery, "")
	}
	if m.parser.IsPastTime(at) {
		return m.Fail(ctx, sess, fields.Delivery, msgDeliveryPast)
	}
	d := sess.State.Draft
	d.DeliveryRaw = strings.TrimSpace(text)
	d.DeliveryAt = &at
	patch := types.Document{
		KeyDeliveryRaw: d.DeliveryRaw,
		KeyDeliveryAt:  DraftPatch(d)[KeyDeliveryAt],
		KeyLoopGuard:   nil,
	}
	return m.succeed(ctx, sess, patch)
}

func (m *Machine) succeed(ctx context.Context, sess *Session, patch types.Document) (Reply, error) {
	if err := m.Patch(ctx, sess, patch); err != nil {
		return Reply{}, err
	}
	return m.Advance(ctx, sess)
}
