package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/internal/alerts"
	"alertflow/internal/broker"
	"alertflow/internal/engine"
	"alertflow/pkg/models"
	"alertflow/pkg/retry"
)

type stubEvaluator struct {
	results []engine.Result
	err     error
	seen    []*models.Event
}

func (s *stubEvaluator) EvaluateEvent(_ context.Context, evt *models.Event) ([]engine.Result, error) {
	s.seen = append(s.seen, evt)
	return s.results, s.err
}

type stubExecutor struct {
	calls int
}

func (s *stubExecutor) Execute(_ context.Context, results []engine.Result) alerts.Summary {
	s.calls++
	return alerts.Summary{Created: len(results)}
}

func triggered(id string) engine.Result {
	return engine.Result{RuleID: id, Triggered: true, OrganizationID: "org-1", ModuleName: "staffing"}
}

func TestProcess_ExecutesTriggeredResults(t *testing.T) {
	ev := &stubEvaluator{results: []engine.Result{triggered("r1")}}
	ex := &stubExecutor{}
	p := New(ev, ex, nil)

	evt := models.NewEventBuilder().
		WithScope("org-1", "staffing").
		WithData(map[string]interface{}{"headcount": 12}).
		Build()

	out, err := p.Process(context.Background(), evt)
	require.NoError(t, err)

	assert.True(t, out.ActionsExecuted)
	assert.Equal(t, 1, out.Triggered())
	assert.Equal(t, 1, out.Alerts.Created)
	assert.Equal(t, 1, ex.calls)
	assert.NotEmpty(t, out.EventID)
}

func TestProcess_DryRunSkipsActions(t *testing.T) {
	ev := &stubEvaluator{results: []engine.Result{triggered("r1")}}
	ex := &stubExecutor{}
	p := New(ev, ex, nil)

	no := false
	evt := &models.Event{
		OrganizationID: "org-1",
		ModuleName:     "staffing",
		Data:           map[string]interface{}{},
		ExecuteActions: &no,
	}

	out, err := p.Process(context.Background(), evt)
	require.NoError(t, err)
	assert.False(t, out.ActionsExecuted)
	assert.Zero(t, ex.calls)
	assert.False(t, evt.Timestamp.IsZero())
}

func TestProcess_NothingTriggered(t *testing.T) {
	ex := &stubExecutor{}
	p := New(&stubEvaluator{}, ex, nil)

	out, err := p.Process(context.Background(), &models.Event{
		OrganizationID: "org-1",
		ModuleName:     "staffing",
		Data:           map[string]interface{}{},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Zero(t, ex.calls)
}

func TestProcess_InvalidEvent(t *testing.T) {
	ev := &stubEvaluator{}
	p := New(ev, nil, nil)

	_, err := p.Process(context.Background(), &models.Event{ModuleName: "staffing", Data: map[string]interface{}{}})
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "organization_id", vErr.Field)
	assert.Empty(t, ev.seen)
}

func TestHandleMessage(t *testing.T) {
	ev := &stubEvaluator{results: []engine.Result{triggered("r1")}}
	ex := &stubExecutor{}
	p := New(ev, ex, nil)

	err := p.HandleMessage(context.Background(), broker.Message{
		Topic: "domain_events",
		Value: []byte(`{"id":"evt-1","organization_id":"org-1","module_name":"staffing","data":{"headcount":3}}`),
	})
	require.NoError(t, err)
	require.Len(t, ev.seen, 1)
	assert.Equal(t, "evt-1", ev.seen[0].ID)
	assert.Equal(t, float64(3), ev.seen[0].Data["headcount"])
	assert.Equal(t, 1, ex.calls)
}

func TestHandleMessage_PoisonMessagesAreFatal(t *testing.T) {
	p := New(&stubEvaluator{}, nil, nil)

	var fatal retry.FatalError

	err := p.HandleMessage(context.Background(), broker.Message{Value: []byte("{not json")})
	assert.ErrorAs(t, err, &fatal)

	err = p.HandleMessage(context.Background(), broker.Message{Value: []byte(`{"organization_id":"org-1","data":{}}`)})
	assert.ErrorAs(t, err, &fatal)
}

func TestHandleMessage_EvaluatorErrorIsRetryable(t *testing.T) {
	p := New(&stubEvaluator{err: errors.New("boom")}, nil, nil)

	err := p.HandleMessage(context.Background(), broker.Message{
		Value: []byte(`{"organization_id":"org-1","module_name":"staffing","data":{}}`),
	})
	require.Error(t, err)

	var fatal retry.FatalError
	assert.False(t, errors.As(err, &fatal))
}
