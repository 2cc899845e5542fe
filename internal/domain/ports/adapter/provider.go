package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"ai-video-studio/internal/domain/model"
)

// Request is the normalized payload handed to a provider. The orchestration
// core never looks inside Inputs; it only fingerprints them.
type Request struct {
	IdempotencyKey string
	Stage          model.StageKind
	Category       model.StageCategory
	Inputs         map[string]string
}

// Fingerprint hashes the normalized request content. Two requests with equal
// fingerprints are the same side effect for deduplication purposes.
func (r Request) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(string(r.Category)))
	h.Write([]byte{0})
	h.Write([]byte(string(r.Stage)))
	pairs := make([][2]string, 0, len(r.Inputs))
	for k, v := range r.Inputs {
		pairs = append(pairs, [2]string{
			strings.ToLower(strings.TrimSpace(k)),
			strings.TrimSpace(v),
		})
	}
	// Order by the normalized key so spelling variants hash identically.
	// Keys that collide after normalization all contribute, ordered by
	// value, so the result stays independent of map iteration.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, p := range pairs {
		h.Write([]byte{0})
		h.Write([]byte(p[0]))
		h.Write([]byte{0})
		h.Write([]byte(p[1]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Heartbeat is called by a provider whenever it makes observable progress.
// What counts as progress is provider-specific: token chunks for script
// generation, audio chunks for narration, percent ticks for visual and
// composition work. progress is best-effort in [0,1].
type Heartbeat func(progress float64)

// Provider is the port for one external AI capability.
type Provider interface {
	ID() string
	Category() model.StageCategory
	Invoke(ctx context.Context, req Request, beat Heartbeat) (*model.StageResult, error)
}

// Compensator is implemented by providers whose calls commit billable or
// otherwise externally visible side effects that can be undone.
type Compensator interface {
	Compensate(ctx context.Context, res *model.StageResult) error
}
