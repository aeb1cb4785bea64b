// Package dedup partitions record batches against keys that are already persisted.
package dedup

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Log key constants for deduplication.
const (
	logKeySkippedKey = "skipped_key"
	logKeyReason     = "reason"
)

// DeduplicateByKey removes repeated keys from a batch, with key typically a method
// expression such as domain.ChannelMessage.Key. It keeps the first occurrence and
// drops subsequent records with the same key.
func DeduplicateByKey[T any, K comparable](items []T, key func(T) K, logger *zerolog.Logger) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	result := make([]T, 0, len(items))

	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			if logger != nil {
				logger.Debug().
					Str(logKeySkippedKey, fmt.Sprint(k)).
					Str(logKeyReason, "repeated in batch").
					Msg("Skipping duplicate record")
			}

			continue
		}

		seen[k] = struct{}{}
		result = append(result, item)
	}

	return result
}

// PartitionResult splits a batch into records to insert and records whose key already exists.
type PartitionResult[T any] struct {
	// New contains records whose key is not yet stored.
	New []T

	// Existing contains records whose key is already stored.
	Existing []T

	// DroppedCount is the number of records removed as in-batch repeats.
	DroppedCount int
}

// Partition deduplicates the batch and splits it against the stored key set.
func Partition[T any, K comparable](items []T, key func(T) K, stored map[K]struct{}, logger *zerolog.Logger) PartitionResult[T] {
	unique := DeduplicateByKey(items, key, logger)

	result := PartitionResult[T]{
		New:          make([]T, 0, len(unique)),
		DroppedCount: len(items) - len(unique),
	}

	for _, item := range unique {
		if _, ok := stored[key(item)]; ok {
			result.Existing = append(result.Existing, item)
			continue
		}

		result.New = append(result.New, item)
	}

	return result
}

// Keys returns the distinct keys of the batch in first-seen order.
func Keys[T any, K comparable](items []T, key func(T) K) []K {
	seen := make(map[K]struct{}, len(items))
	keys := make([]K, 0, len(items))

	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	return keys
}
