package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// FakeEmbedder is a deterministic ai.Embedder for tests. It hashes token
// n-grams into a fixed-width vector so related texts land near each other
// without any network access.
type FakeEmbedder struct {
	Dim int
}

// NewFakeEmbedder returns a FakeEmbedder producing dim-wide vectors.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{Dim: dim}
}

// Name implements ai.Embedder.
func (f *FakeEmbedder) Name() string { return "testutil/fake-embedder" }

// Register implements ai.Embedder. The fake is used directly, never through
// a registry, so this is a no-op.
func (f *FakeEmbedder) Register(_ api.Registry) {}

// Embed implements ai.Embedder.
func (f *FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		text := ""
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: f.vector(text)})
	}
	return resp, nil
}

func (f *FakeEmbedder) vector(text string) []float32 {
	vec := make([]float32, f.Dim)
	runes := []rune(text)
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%uint32(f.Dim)]++
	}

	// L2 normalize so cosine distance behaves.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
