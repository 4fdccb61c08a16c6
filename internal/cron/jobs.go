package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

type cartPurger interface {
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

type conversationResetter interface {
	ResetStale(ctx context.Context, steps []enums.ConversationStep, before time.Time) (int64, error)
}

// StaleCartJob deletes cart lines untouched for the configured age.
type StaleCartJob struct {
	carts cartPurger
	age   time.Duration
	now   func() time.Time
}

func NewStaleCartJob(carts cartPurger, days int) (*StaleCartJob, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart purger required")
	}
	if days <= 0 {
		return nil, fmt.Errorf("stale cart days must be positive")
	}
	return &StaleCartJob{carts: carts, age: time.Duration(days) * 24 * time.Hour, now: time.Now}, nil
}

func (j *StaleCartJob) Name() string { return "stale-carts" }

func (j *StaleCartJob) Run(ctx context.Context) (int64, error) {
	return j.carts.PurgeStale(ctx, j.now().UTC().Add(-j.age))
}

// abandonedSteps are reset when idle. NEEDS_HUMAN waits for a merchant.
var abandonedSteps = []enums.ConversationStep{
	enums.ConversationStepAskingInfo,
	enums.ConversationStepAwaitingConfirmation,
	enums.ConversationStepCompleted,
}

// StaleConversationJob clears abandoned order dialogues.
type StaleConversationJob struct {
	states conversationResetter
	age    time.Duration
	now    func() time.Time
}

func NewStaleConversationJob(states conversationResetter, hours int) (*StaleConversationJob, error) {
	if states == nil {
		return nil, fmt.Errorf("conversation resetter required")
	}
	if hours <= 0 {
		return nil, fmt.Errorf("stale conversation hours must be positive")
	}
	return &StaleConversationJob{states: states, age: time.Duration(hours) * time.Hour, now: time.Now}, nil
}

func (j *StaleConversationJob) Name() string { return "stale-conversations" }

func (j *StaleConversationJob) Run(ctx context.Context) (int64, error) {
	return j.states.ResetStale(ctx, abandonedSteps, j.now().UTC().Add(-j.age))
}
