package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
)

// createTimeout bounds the shared insert of a new conversation.
const createTimeout = 10 * time.Second

// Adapter owns the per-owner turn log on top of a Store.
type Adapter struct {
	store Store
	now   func() time.Time
	group singleflight.Group
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAdapter(store Store, opts ...Option) *Adapter {
	a := &Adapter{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidateContent checks the raw length of text, then trims it.
func ValidateContent(text string) (string, error) {
	if utf8.RuneCountInString(text) > MaxTurnChars {
		return "", ErrContentTooLong
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	return trimmed, nil
}

// GetOrCreate returns the owner's conversation, seeding a greeting-only one on first use.
func (a *Adapter) GetOrCreate(ctx context.Context, ownerID string) (Conversation, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Conversation{}, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	conv, err := a.store.FindByOwner(ctx, ownerID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, storageErr("find conversation", err)
	}

	// The insert is shared by every caller for this owner, so one caller
	// going away must not fail the others.
	ch := a.group.DoChan(ownerID, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createTimeout)
		defer cancel()
		return a.create(cctx, ownerID)
	})
	select {
	case <-ctx.Done():
		return Conversation{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Conversation{}, res.Err
		}
		// singleflight shares one value between callers; hand each its own slice.
		created := res.Val.(Conversation)
		return clone(&created), nil
	}
}

func (a *Adapter) create(ctx context.Context, ownerID string) (Conversation, error) {
	now := a.now()
	conv := Conversation{
		OwnerID:   ownerID,
		Turns:     []Turn{{Content: Greeting, Sender: SenderBot, Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := a.store.Insert(ctx, conv)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationExists) {
		return Conversation{}, storageErr("insert conversation", err)
	}
	existing, err := a.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return Conversation{}, storageErr("reload conversation", err)
	}
	return existing, nil
}

// AppendUserTurn validates, trims and appends a user turn.
func (a *Adapter) AppendUserTurn(ctx context.Context, ownerID, text string) (Turn, error) {
	content, err := ValidateContent(text)
	if err != nil {
		return Turn{}, err
	}
	return a.appendTurn(ctx, ownerID, content, SenderUser)
}

// AppendBotTurn appends a bot turn, creating the conversation when missing.
func (a *Adapter) AppendBotTurn(ctx context.Context, ownerID, text string) (Turn, error) {
	return a.appendTurn(ctx, ownerID, text, SenderBot)
}

func (a *Adapter) appendTurn(ctx context.Context, ownerID, content string, sender Sender) (Turn, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Turn{}, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	turn := Turn{Content: content, Sender: sender, Timestamp: a.now()}
	err := a.store.AppendTurn(ctx, ownerID, turn)
	if errors.Is(err, ErrNotFound) {
		if _, err := a.GetOrCreate(ctx, ownerID); err != nil {
			return Turn{}, err
		}
		turn.Timestamp = a.now()
		err = a.store.AppendTurn(ctx, ownerID, turn)
	}
	if err != nil {
		return Turn{}, storageErr("append turn", err)
	}
	return turn, nil
}

// History returns the full ordered turn log.
func (a *Adapter) History(ctx context.Context, ownerID string) ([]Turn, error) {
	conv, err := a.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return conv.Turns, nil
}

// Clear removes the owner's conversation. It reports false when none existed.
func (a *Adapter) Clear(ctx context.Context, ownerID string) (bool, error) {
	deleted, err := a.store.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return false, storageErr("delete conversation", err)
	}
	return deleted, nil
}
