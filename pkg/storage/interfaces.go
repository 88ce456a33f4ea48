package storage

import (
	"context"
	"errors"
	"time"
)

const DefaultProfile = "default"

var ErrNotFound = errors.New("storage: record not found")

// TokenRecord is the persisted state of one login profile.
type TokenRecord struct {
	ID           string
	Profile      string
	Username     string
	AccessToken  string
	RefreshToken string
	DateAdded    time.Time
	DateModified *time.Time
	ExpiresAt    *time.Time
}

type JournalEvent string

const (
	JournalEventApplied    JournalEvent = "applied"
	JournalEventCommitted  JournalEvent = "committed"
	JournalEventReverted   JournalEvent = "reverted"
	JournalEventReconciled JournalEvent = "reconciled"
)

// JournalRecord is one step of an optimistic mutation. All steps of a
// mutation share its MutationID.
type JournalRecord struct {
	ID           string
	MutationID   string
	DateAdded    time.Time
	Command      string
	EntityKind   string
	EntityID     int64
	ActorID      int64
	Event        JournalEvent
	ErrorMessage string
}

type TokenStore interface {
	PutTokens(ctx context.Context, record TokenRecord) error
	// GetTokens returns ErrNotFound when the profile has no tokens.
	GetTokens(ctx context.Context, profile string) (TokenRecord, error)
	DeleteTokens(ctx context.Context, profile string) error
}

type JournalStore interface {
	PutJournal(ctx context.Context, record JournalRecord) error
	ListJournalByMutation(ctx context.Context, mutationID string) ([]JournalRecord, error)
	ListJournalByEntity(ctx context.Context, kind string, id int64) ([]JournalRecord, error)
	PurgeJournal(ctx context.Context, before time.Time) (int64, error)
}

type Store interface {
	TokenStore
	JournalStore
}

type Dependencies struct {
	Tokens  TokenStore
	Journal JournalStore
}
