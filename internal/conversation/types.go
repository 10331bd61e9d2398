package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sender identifies who authored a turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MaxTurnChars bounds the length of a user turn, counted in code points.
const MaxTurnChars = 1000

// Greeting seeds every new conversation.
const Greeting = "Hello! I'm your mental health companion. How can I help you today?"

// Turn is one stored message. Turns are never edited once appended.
type Turn struct {
	Content   string    `json:"content" bson:"content"`
	Sender    Sender    `json:"sender" bson:"sender"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Conversation is the ordered turn log owned by a single user.
type Conversation struct {
	OwnerID   string    `json:"owner_id" bson:"userId"`
	Turns     []Turn    `json:"turns" bson:"messages"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

var (
	// ErrNotFound reports that the owner has no conversation.
	ErrNotFound = errors.New("conversation not found")
	// ErrConversationExists is returned by Store.Insert when the owner already has one.
	ErrConversationExists = errors.New("conversation already exists")
	// ErrValidation marks input rejected before any persistence.
	ErrValidation = errors.New("invalid turn")
	// ErrStorage wraps driver failures surfaced to callers.
	ErrStorage = errors.New("conversation storage failure")

	ErrEmptyContent   = fmt.Errorf("%w: message content is required", ErrValidation)
	ErrContentTooLong = fmt.Errorf("%w: message is longer than %d characters", ErrValidation, MaxTurnChars)
)

// Store is the storage collaborator. Implementations must enforce at most one
// conversation per owner and give read-your-writes consistency per owner.
type Store interface {
	FindByOwner(ctx context.Context, ownerID string) (Conversation, error)
	Insert(ctx context.Context, conv Conversation) error
	AppendTurn(ctx context.Context, ownerID string, turn Turn) error
	DeleteByOwner(ctx context.Context, ownerID string) (bool, error)
	Close() error
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
