package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrCardinality is returned when a service hands back a different number of results than it was
// given inputs. Results are never truncated or padded to fit.
var ErrCardinality = errors.New("result count does not match input count")

const DefaultEmbedBatchSize = 20

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

type StageEmbedding struct {
	StageKey
	TextChars int
	Vector    []float64
}

type EmbedOptions struct {
	BatchSize int
	Logger    *zap.Logger
}

// EmbedStageTexts embeds every non-blank stage text. Blank texts are excluded before submission
// and reported through the returned skipped keys, so every embedding stays attached to the key it
// was computed for.
func EmbedStageTexts(ctx context.Context, emb Embedder, texts []StageText, opts EmbedOptions) ([]StageEmbedding, []StageKey, error) {
	if emb == nil {
		return nil, nil, errors.New("EmbedStageTexts: nil embedder")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var submit []StageText
	var skipped []StageKey
	for _, st := range texts {
		if strings.TrimSpace(st.Text) == "" {
			skipped = append(skipped, st.StageKey)
			continue
		}
		submit = append(submit, st)
	}
	if len(skipped) > 0 {
		log.Info("skipping blank stage texts", zap.Int("skipped", len(skipped)), zap.Int("submitted", len(submit)))
	}

	out := make([]StageEmbedding, 0, len(submit))
	dim := 0
	for start := 0; start < len(submit); start += batchSize {
		end := min(start+batchSize, len(submit))
		batch := submit[start:end]

		inputs := make([]string, len(batch))
		for i, st := range batch {
			inputs[i] = st.Text
		}
		vecs, err := emb.EmbedBatch(ctx, inputs)
		if err != nil {
			return nil, skipped, fmt.Errorf("EmbedStageTexts: batch starting at %d: %w", start, err)
		}
		if len(vecs) != len(batch) {
			log.Error("embedding count mismatch",
				zap.Int("batch_start", start), zap.Int("submitted", len(batch)), zap.Int("returned", len(vecs)))
			return nil, skipped, fmt.Errorf("EmbedStageTexts: batch starting at %d: submitted %d got %d: %w",
				start, len(batch), len(vecs), ErrCardinality)
		}
		for i, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) == 0 || len(v) != dim {
				return nil, skipped, fmt.Errorf("EmbedStageTexts: %s/%s: vector dimension %d, want %d",
					batch[i].FanModelID, batch[i].Stage, len(v), dim)
			}
			out = append(out, StageEmbedding{StageKey: batch[i].StageKey, TextChars: utf8.RuneCountInString(batch[i].Text), Vector: v})
		}
		log.Info("embedded batch", zap.Int("done", end), zap.Int("total", len(submit)))
	}
	return out, skipped, nil
}
