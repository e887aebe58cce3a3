package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

const vectorPrefix = "vec/"

type VectorEntry struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// VectorIndex is a brute-force similarity index over Badger. Entries are
// replaced on upsert; queries scan every entry.
type VectorIndex struct {
	backend *Backend
}

func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

func (v *VectorIndex) Upsert(ctx context.Context, entry VectorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		return fmt.Errorf("vector id is required")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}
	if err := v.backend.set([]byte(vectorPrefix+entry.ID), data); err != nil {
		return fmt.Errorf("failed to upsert vector %s: %w", entry.ID, err)
	}
	return nil
}

// Query returns up to topK entries ranked by cosine similarity, best first.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var matches []Match
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entry VectorEntry
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("failed to decode vector: %w", err)
			}
			if len(entry.Values) == 0 {
				continue
			}

			matches = append(matches, Match{
				ID:       entry.ID,
				Score:    cosineSimilarity(vector, entry.Values),
				Metadata: entry.Metadata,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
