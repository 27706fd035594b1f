package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"augur/internal/forecast"
	"augur/internal/gateway/provider"
	"augur/internal/prompt"
	"augur/internal/store/decisionlog"
)

type MockProvider struct {
	mock.Mock
	id string
}

func (m *MockProvider) ID() string { return m.id }

func (m *MockProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Insert(ctx context.Context, rec decisionlog.Record) (int64, error) {
	args := m.Called(ctx, rec)
	return int64(args.Int(0)), args.Error(1)
}

type staticTemplates prompt.Templates

func (s staticTemplates) Templates() prompt.Templates { return prompt.Templates(s) }

func g1Forecasts() []forecast.Forecast {
	return []forecast.Forecast{
		{Symbol: "A", Direction: forecast.Up, Confidence: 0.9},
		{Symbol: "B", Direction: forecast.Down, Confidence: 0.6},
		{Symbol: "C", Direction: forecast.Up, Confidence: 0.3},
	}
}

func newTestEngine(rec Recorder, providers ...provider.ModelProvider) *Engine {
	e := NewEngine(providers, staticTemplates(prompt.Defaults()), NewParser(3, 3), rec)
	e.traceID = func() string { return "trace-1" }
	return e
}

func TestDecide_OmittedAssetIsExcluded(t *testing.T) {
	p := &MockProvider{id: "main"}
	p.On("Call", mock.Anything, mock.MatchedBy(func(pl provider.ChatPayload) bool {
		a := strings.Index(pl.User, "A prediction=+1 confidence=0.90")
		b := strings.Index(pl.User, "B prediction=-1 confidence=0.60")
		c := strings.Index(pl.User, "C prediction=+1 confidence=0.30")
		return a >= 0 && a < b && b < c &&
			pl.TraceID == "trace-1" && pl.EnvelopeKey == EnvelopeKey && len(pl.Schema) > 0 &&
			strings.Contains(pl.System, "3")
	})).Return(`[{"token":"A","prediction":1},{"token":"B","prediction":-1}]`, nil).Once()

	rec := new(MockRecorder)
	rec.On("Insert", mock.Anything, mock.MatchedBy(func(r decisionlog.Record) bool {
		return r.GameID == "g1" && r.TraceID == "trace-1" && r.ProviderID == "main" &&
			r.Error == "" && r.Degenerate && r.Selections["A"] == 1 && r.Selections["B"] == -1
	})).Return(1, nil).Once()

	res, err := newTestEngine(rec, p).Decide(context.Background(), "g1", g1Forecasts(), nil)
	require.NoError(t, err)
	assert.Equal(t, Decision{"A": 1, "B": -1}, res.Decision)
	assert.True(t, res.Degenerate)
	assert.Equal(t, "main", res.ProviderID)
	p.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestDecide_MalformedOutputFailsWithoutFallback(t *testing.T) {
	first := &MockProvider{id: "first"}
	first.On("Call", mock.Anything, mock.Anything).
		Return(`[{"token":"A","prediction":1,"reason":"up"}]`, nil).Once()
	second := &MockProvider{id: "second"}

	rec := new(MockRecorder)
	rec.On("Insert", mock.Anything, mock.MatchedBy(func(r decisionlog.Record) bool {
		return r.ProviderID == "first" && r.Error != "" && r.Selections == nil
	})).Return(1, nil).Once()

	res, err := newTestEngine(rec, first, second).Decide(context.Background(), "g1", g1Forecasts(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecision))
	assert.Nil(t, res.Decision)
	second.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
	rec.AssertExpectations(t)
}

func TestDecide_ProviderErrorFallsThrough(t *testing.T) {
	first := &MockProvider{id: "first"}
	first.On("Call", mock.Anything, mock.Anything).Return("", errors.New("status 503")).Once()
	second := &MockProvider{id: "second"}
	second.On("Call", mock.Anything, mock.Anything).
		Return(`{"predictions":[{"token":"A","prediction":1},{"token":"B","prediction":1},{"token":"C","prediction":-1}]}`, nil).Once()

	rec := new(MockRecorder)
	rec.On("Insert", mock.Anything, mock.Anything).Return(1, nil).Twice()

	res, err := newTestEngine(rec, first, second).Decide(context.Background(), "g1", g1Forecasts(), nil)
	require.NoError(t, err)
	assert.Equal(t, "second", res.ProviderID)
	assert.Equal(t, Decision{"A": 1, "B": 1, "C": -1}, res.Decision)
	assert.False(t, res.Degenerate)
	rec.AssertExpectations(t)
}

func TestDecide_AllProvidersFail(t *testing.T) {
	p := &MockProvider{id: "only"}
	p.On("Call", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	_, err := newTestEngine(nil, p).Decide(context.Background(), "g1", g1Forecasts(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecision))
	assert.Contains(t, err.Error(), "timeout")
}

func TestDecide_NoForecasts(t *testing.T) {
	p := &MockProvider{id: "only"}
	_, err := newTestEngine(nil, p).Decide(context.Background(), "g1", nil, nil)
	assert.True(t, errors.Is(err, ErrDecision))
	p.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestDecide_RecorderFailureIsNotFatal(t *testing.T) {
	p := &MockProvider{id: "main"}
	p.On("Call", mock.Anything, mock.Anything).
		Return(`[{"token":"C","prediction":-1}]`, nil)
	rec := new(MockRecorder)
	rec.On("Insert", mock.Anything, mock.Anything).Return(0, errors.New("disk full"))

	res, err := newTestEngine(rec, p).Decide(context.Background(), "g1", g1Forecasts(), nil)
	require.NoError(t, err)
	assert.Equal(t, Decision{"C": -1}, res.Decision)
}
