//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoONNX = errors.New("onnx embedder requires cgo and the onnxruntime shared library")

// ONNXEmbedder is unavailable without cgo.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails without cgo.
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, errNoONNX
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, errNoONNX }

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errNoONNX
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
