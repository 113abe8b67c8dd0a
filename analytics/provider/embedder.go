package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
)

// OpenAIEmbedder embeds texts with the embeddings endpoint. Vectors are returned in input order
// using the index the API reports for each one.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int64
}

func NewOpenAIEmbedder(client *openai.Client, model string, dimensions int64) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, errors.New("NewOpenAIEmbedder: client is nil")
	}
	if model == "" {
		return nil, errors.New("NewOpenAIEmbedder: model is empty")
	}
	return &OpenAIEmbedder{client: client, model: model, dimensions: dimensions}, nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(e.dimensions)
	}

	resp, err := retry(ctx, func() (*openai.CreateEmbeddingResponse, error) {
		return e.client.Embeddings.New(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAIEmbedder: submitted %d texts, got %d embeddings", len(texts), len(resp.Data))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		i := int(d.Index)
		if i < 0 || i >= len(out) || out[i] != nil {
			return nil, fmt.Errorf("OpenAIEmbedder: bad embedding index %d", d.Index)
		}
		out[i] = d.Embedding
	}
	return out, nil
}
