package localstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

// Image is a persister's handle on the live database.
type Image interface {
	Serialize(ctx context.Context) ([]byte, error)
	Deserialize(ctx context.Context, data []byte) error
	Replay(ctx context.Context, stmts []Statement) error
}

// Persister makes the in-memory database durable.
type Persister interface {
	// Load restores a previously persisted image and reports whether one
	// existed.
	Load(ctx context.Context, img Image) (bool, error)
	// Flush records the statements of one committed mutation.
	Flush(ctx context.Context, img Image, stmts []Statement) error
	// Checkpoint writes the whole image.
	Checkpoint(ctx context.Context, img Image) error
}

// SnapshotPersister writes the full database image to a slot on every
// flush.
type SnapshotPersister struct {
	slots SlotStore
	key   string
}

// NewSnapshotPersister creates a SnapshotPersister writing to key, or to
// DefaultSlotKey when key is empty.
func NewSnapshotPersister(slots SlotStore, key string) *SnapshotPersister {
	if key == "" {
		key = DefaultSlotKey
	}
	return &SnapshotPersister{slots: slots, key: key}
}

func (p *SnapshotPersister) Load(ctx context.Context, img Image) (bool, error) {
	data, err := p.slots.Get(ctx, p.key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := img.Deserialize(ctx, data); err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}
	return true, nil
}

func (p *SnapshotPersister) Flush(ctx context.Context, img Image, _ []Statement) error {
	return p.Checkpoint(ctx, img)
}

func (p *SnapshotPersister) Checkpoint(ctx context.Context, img Image) error {
	data, err := img.Serialize(ctx)
	if err != nil {
		return fmt.Errorf("serialize database: %w", err)
	}
	return p.slots.Put(ctx, p.key, data)
}

// DefaultCompactEvery is how many journal entries accumulate before the
// journal is folded into a new base image.
const DefaultCompactEvery = 200

// JournalPersister appends each flushed mutation to a journal and only
// writes the full image when compacting. Once an entry fails to reach the
// journal, the journal no longer replays to the live image, so every flush
// writes the full image until one succeeds.
type JournalPersister struct {
	slots        SlotStore
	key          string
	journal      string
	compactEvery int
	gap          bool
}

// NewJournalPersister creates a JournalPersister whose base image lives
// under key and whose journal is compacted every compactEvery entries.
func NewJournalPersister(slots SlotStore, key string, compactEvery int) *JournalPersister {
	if key == "" {
		key = DefaultSlotKey
	}
	if compactEvery <= 0 {
		compactEvery = DefaultCompactEvery
	}
	return &JournalPersister{
		slots:        slots,
		key:          key,
		journal:      key + "-journal",
		compactEvery: compactEvery,
	}
}

func (p *JournalPersister) Load(ctx context.Context, img Image) (bool, error) {
	base, err := p.slots.Get(ctx, p.key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	entries, err := p.slots.Entries(ctx, p.journal)
	if err != nil {
		return false, err
	}
	if base == nil {
		if len(entries) > 0 {
			return false, errors.New("journal has entries but no base image")
		}
		return false, nil
	}

	if err := img.Deserialize(ctx, base); err != nil {
		return false, fmt.Errorf("restore base image: %w", err)
	}
	for i, entry := range entries {
		var stmts []Statement
		if err := gob.NewDecoder(bytes.NewReader(entry)).Decode(&stmts); err != nil {
			return false, fmt.Errorf("decode journal entry %d: %w", i+1, err)
		}
		if err := img.Replay(ctx, stmts); err != nil {
			return false, fmt.Errorf("replay journal entry %d: %w", i+1, err)
		}
	}
	return true, nil
}

func (p *JournalPersister) Flush(ctx context.Context, img Image, stmts []Statement) error {
	if p.gap {
		if err := p.Checkpoint(ctx, img); err != nil {
			return fmt.Errorf("rewrite image after lost journal entry: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(stmts); err != nil {
		p.gap = true
		return fmt.Errorf("encode journal entry: %w", err)
	}
	n, err := p.slots.Append(ctx, p.journal, buf.Bytes())
	if err != nil {
		p.gap = true
		return err
	}
	if n >= p.compactEvery {
		return p.Checkpoint(ctx, img)
	}
	return nil
}

func (p *JournalPersister) Checkpoint(ctx context.Context, img Image) error {
	data, err := img.Serialize(ctx)
	if err != nil {
		return fmt.Errorf("serialize database: %w", err)
	}
	if err := p.slots.Checkpoint(ctx, p.key, p.journal, data); err != nil {
		return err
	}
	p.gap = false
	return nil
}
