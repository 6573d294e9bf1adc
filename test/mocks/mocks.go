package mocks

import (
	"context"

	"github.com/agentary-ai/agentary-go/pkg/model"
	"github.com/stretchr/testify/mock"
)

// MockModel is a mock implementation of the model.Model interface
type MockModel struct {
	mock.Mock
}

func (m *MockModel) GetResponse(ctx context.Context, request *model.Request) (*model.Response, error) {
	args := m.Called(ctx, request)
	if resp := args.Get(0); resp != nil {
		return resp.(*model.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockModel) StreamResponse(ctx context.Context, request *model.Request) (<-chan model.Chunk, error) {
	args := m.Called(ctx, request)
	if ch := args.Get(0); ch != nil {
		return ch.(<-chan model.Chunk), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProvider is a mock implementation of the model.Provider interface
type MockProvider struct {
	mock.Mock
}

func (p *MockProvider) GetModel(name string) (model.Model, error) {
	args := p.Called(name)
	if m := args.Get(0); m != nil {
		return m.(model.Model), args.Error(1)
	}
	return nil, args.Error(1)
}

// ChunkStream builds a closed chunk channel replaying content as a
// single token, for wiring into MockModel.StreamResponse expectations.
func ChunkStream(content string) <-chan model.Chunk {
	ch := make(chan model.Chunk, 3)
	ch <- model.Chunk{Token: content, IsFirst: true}
	ch <- model.Chunk{IsLast: true}
	close(ch)
	return ch
}
