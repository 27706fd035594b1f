package wager

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"augur/internal/decision"
	"augur/internal/gateway/game"
)

type MockJoiner struct {
	mock.Mock
}

func (m *MockJoiner) Join(ctx context.Context, gameID string, req game.JoinRequest) (json.RawMessage, error) {
	args := m.Called(ctx, gameID, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func TestSubmit_SendsExactSelections(t *testing.T) {
	j := new(MockJoiner)
	j.On("Join", mock.Anything, "g1", game.JoinRequest{
		Coins:  map[string]int{"A": 1, "B": -1},
		Tokens: 100,
	}).Return(json.RawMessage(`{"ok":true}`), nil).Once()

	resp, err := NewSubmitter(j, decimal.NewFromInt(100)).Submit(context.Background(), "g1", decision.Decision{"A": 1, "B": -1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp))
	j.AssertExpectations(t)
}

func TestSubmit_RejectedIsSubmissionFailure(t *testing.T) {
	j := new(MockJoiner)
	statusErr := &game.StatusError{Code: 409, Body: "already started"}
	j.On("Join", mock.Anything, "g1", mock.Anything).Return(nil, statusErr).Once()

	_, err := NewSubmitter(j, decimal.NewFromInt(100)).Submit(context.Background(), "g1", decision.Decision{"A": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSubmission))
	var se *game.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 409, se.Code)
	j.AssertNumberOfCalls(t, "Join", 1)
}

func TestSubmit_GuardsBeforeCalling(t *testing.T) {
	j := new(MockJoiner)
	s := NewSubmitter(j, decimal.NewFromInt(100))

	_, err := s.Submit(context.Background(), "g1", decision.Decision{})
	assert.True(t, errors.Is(err, ErrSubmission))
	_, err = s.Submit(context.Background(), " ", decision.Decision{"A": 1})
	assert.True(t, errors.Is(err, ErrSubmission))
	_, err = NewSubmitter(j, decimal.Zero).Submit(context.Background(), "g1", decision.Decision{"A": 1})
	assert.True(t, errors.Is(err, ErrSubmission))

	j.AssertNotCalled(t, "Join", mock.Anything, mock.Anything, mock.Anything)
}

func TestWagerRequest_FractionalStake(t *testing.T) {
	w := Wager{GameID: "g", Selections: decision.Decision{"X": -1}, Stake: decimal.RequireFromString("12.5")}
	req := w.Request()
	assert.Equal(t, 12.5, req.Tokens)
	assert.Equal(t, map[string]int{"X": -1}, req.Coins)
}
