package illustrate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DekelUsach/Loomi-backend/internal/config"
)

type fakeGenerator struct {
	mu       sync.Mutex
	prompts  []string
	failOn   string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return nil, errors.New("boom")
	}
	return []byte(prompt[len(prompt)-1:]), nil
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBlobs) Put(data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	ref := fmt.Sprintf("/images/%d-%s", len(m.data), data)
	m.data[ref] = data
	return ref, nil
}

func TestIllustrateDisabled(t *testing.T) {
	il := NewIllustrator(nil, &memBlobs{})
	assert.False(t, il.Enabled())
	refs := il.Illustrate(context.Background(), []string{"a", "b"}, nil)
	assert.Equal(t, []string{"", ""}, refs)
}

func TestIllustrateKeepsOrderAndSkipsFailures(t *testing.T) {
	gen := &fakeGenerator{failOn: "dos"}
	blobs := &memBlobs{}
	il := NewIllustrator(gen, blobs, WithConcurrency(3))

	var calls []int
	refs := il.Illustrate(context.Background(), []string{"uno 1", "dos 2", "tres 3"}, func(done, total int) {
		assert.Equal(t, 3, total)
		calls = append(calls, done)
	})

	require.Len(t, refs, 3)
	assert.True(t, strings.HasSuffix(refs[0], "-1"), refs[0])
	assert.Empty(t, refs[1])
	assert.True(t, strings.HasSuffix(refs[2], "-3"), refs[2])
	assert.Equal(t, []int{1, 2, 3}, calls)
	assert.Len(t, blobs.data, 2)
}

func TestIllustrateDefaultIsSequential(t *testing.T) {
	gen := &fakeGenerator{}
	il := NewIllustrator(gen, &memBlobs{})
	paragraphs := make([]string, 8)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("p%d", i)
	}
	refs := il.Illustrate(context.Background(), paragraphs, nil)
	assert.Len(t, refs, 8)
	assert.Equal(t, int32(1), gen.peak.Load())
}

func TestIllustrateCanceled(t *testing.T) {
	gen := &fakeGenerator{}
	il := NewIllustrator(gen, &memBlobs{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	refs := il.Illustrate(ctx, []string{"a", "b"}, nil)
	assert.Equal(t, []string{"", ""}, refs)
	assert.Empty(t, gen.prompts)
}

func TestPrompt(t *testing.T) {
	p := Prompt("El zorro corre por el bosque.")
	assert.Contains(t, p, "El zorro corre por el bosque.")
	assert.Contains(t, p, "sin texto")
}

func TestNewFromConfig(t *testing.T) {
	blobs := &memBlobs{}
	assert.False(t, New(&config.IllustrationConfig{Enabled: false, APIKey: "k"}, blobs, nil).Enabled())
	assert.False(t, New(&config.IllustrationConfig{Enabled: true}, blobs, nil).Enabled())
	assert.True(t, New(&config.IllustrationConfig{Enabled: true, APIKey: "k", RequestsPerMinute: 5}, blobs, nil).Enabled())
}

func TestOpenAIImages(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req imagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b64_json", req.ResponseFormat)
		assert.Equal(t, "un zorro", req.Prompt)
		assert.Equal(t, 1, req.N)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIImages(srv.URL, "secret", "", "", 0)
	require.NoError(t, err)
	img, err := c.Generate(context.Background(), "un zorro")
	require.NoError(t, err)
	assert.Equal(t, png, img)
}

func TestOpenAIImagesErrors(t *testing.T) {
	_, err := NewOpenAIImages("", "", "", "", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"content policy"}}`))
	}))
	defer srv.Close()
	c, err := NewOpenAIImages(srv.URL, "k", "", "", 0)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer empty.Close()
	c, _ = NewOpenAIImages(empty.URL, "k", "", "", 0)
	_, err = c.Generate(context.Background(), "x")
	assert.Error(t, err)
}
