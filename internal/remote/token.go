package remote

import (
	"context"
	"errors"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/localstore"
)

// SlotTokens keeps the bearer token in the durable slot store.
type SlotTokens struct {
	slots localstore.SlotStore
	key   string
}

func NewSlotTokens(slots localstore.SlotStore) *SlotTokens {
	return &SlotTokens{slots: slots, key: localstore.TokenSlotKey}
}

// Token returns the stored token, or "" when none is stored.
func (t *SlotTokens) Token(ctx context.Context) (string, error) {
	b, err := t.slots.Get(ctx, t.key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *SlotTokens) Save(ctx context.Context, token string) error {
	return t.slots.Put(ctx, t.key, []byte(token))
}

func (t *SlotTokens) Clear(ctx context.Context) error {
	return t.slots.Delete(ctx, t.key)
}
