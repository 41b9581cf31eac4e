package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
	opts    llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&f.opts)
	}
	for _, m := range msgs {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tc.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

type fakeEmbedClient struct {
	vec [][]float32
	err error
	got []string
}

func (f *fakeEmbedClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.got = append(f.got, texts...)
	return f.vec, f.err
}

func TestGeneratorComplete(t *testing.T) {
	m := &fakeModel{reply: "  A ROS 2 workspace is a directory.  "}
	g := NewGenerator(m)

	out, err := g.Complete(context.Background(), "explain", Options{Temperature: 0.3, MaxTokens: 800})
	require.NoError(t, err)
	assert.Equal(t, "A ROS 2 workspace is a directory.", out)
	assert.Equal(t, []string{"explain"}, m.prompts)
	assert.InDelta(t, 0.3, m.opts.Temperature, 1e-9)
	assert.Equal(t, 800, m.opts.MaxTokens)
}

func TestGeneratorPassesZeroTemperature(t *testing.T) {
	m := &fakeModel{reply: "ok", opts: llms.CallOptions{Temperature: 0.9}}
	_, err := NewGenerator(m).Complete(context.Background(), "q", Options{Temperature: 0})
	require.NoError(t, err)
	assert.Zero(t, m.opts.Temperature)
}

func TestGeneratorEmptyCompletion(t *testing.T) {
	_, err := NewGenerator(&fakeModel{reply: "   "}).Complete(context.Background(), "q", Options{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestGeneratorClassifiesStatus(t *testing.T) {
	upstream := errors.New("API returned unexpected status code: 503: overloaded")
	_, err := NewGenerator(&fakeModel{err: upstream}).Complete(context.Background(), "q", Options{})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.HTTPStatus())
	assert.ErrorIs(t, err, upstream)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))

	plain := errors.New("connection refused")
	assert.Same(t, plain, classify(plain))

	var se *StatusError
	require.ErrorAs(t, classify(errors.New("ollama: status 429 too many")), &se)
	assert.Equal(t, 429, se.Code)
}

func TestEmbedder(t *testing.T) {
	c := &fakeEmbedClient{vec: [][]float32{{0.1, 0.2}}}
	e, err := NewEmbedder(c)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "what is a node?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, []string{"what is a node?"}, c.got)
}

func TestEmbedderError(t *testing.T) {
	e, err := NewEmbedder(&fakeEmbedClient{err: errors.New("status code: 500")})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.Code)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewClientOllama(t *testing.T) {
	c, err := NewEmbeddingClient(Config{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "llama3", EmbeddingModel: "nomic-embed-text"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
