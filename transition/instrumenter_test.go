package transition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns instants advancing by step on every call.
func stepClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	base := time.Now()
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		base = base.Add(step)
		return base
	}
}

// hopTo simulates a pool hop by retagging the context synchronously.
func hopTo(kind core.ExecutionKind) pipeline.Processor {
	return pipeline.StageFunc(func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, ev *pipeline.Event) {
			next(core.WithExecutionKind(ctx, kind), ev)
		}
	})
}

func TestBuilder_TwoPhase(t *testing.T) {
	b := &Builder{now: stepClock(5 * time.Millisecond)}

	rec, err := b.From("producer").To("worker").Build()
	require.NoError(t, err)
	assert.Equal(t, Record{From: "producer", To: "worker", Duration: 5 * time.Millisecond}, rec)
	assert.Equal(t, producerToWorker, rec.Key())
	assert.Equal(t, "producer->worker", rec.Key().String())
}

func TestBuilder_IncompleteFails(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.ErrorIs(t, err, ErrIncompleteRecord)

	_, err = NewBuilder().From("producer").Build()
	assert.ErrorIs(t, err, ErrIncompleteRecord)

	_, err = NewBuilder().To("worker").Build()
	assert.ErrorIs(t, err, ErrIncompleteRecord)
}

func TestBuilder_RealClockNonNegative(t *testing.T) {
	rec, err := NewBuilder().From("a").To("b").Build()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.Duration, time.Duration(0))
}

func TestService_DisabledDropsRecords(t *testing.T) {
	stats := NewStatistics()
	svc := NewService(InstrumentationDisabled, stats)

	for range 1000 {
		svc.Add(record(producerToWorker, time.Millisecond))
	}
	svc.AddAll([]Record{record(workerToAsync, 1)})

	assert.False(t, svc.Enabled())
	assert.Nil(t, svc.Statistics())
	assert.Empty(t, stats.Transitions())
	assert.Empty(t, stats.times)
}

func TestService_UnboundIsDisabled(t *testing.T) {
	svc := NewService(InstrumentationEnabled, nil)
	assert.False(t, svc.Enabled())
	svc.Add(record(producerToWorker, 1))

	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())
	nilSvc.Add(record(producerToWorker, 1))
	nilSvc.AddAll(nil)
}

func TestService_EnabledForwards(t *testing.T) {
	stats := NewStatistics()
	svc := NewService(InstrumentationEnabled, stats)

	svc.Add(record(producerToWorker, 1))
	svc.AddAll([]Record{record(producerToWorker, 2), record(workerToAsync, 3)})

	require.Same(t, stats, svc.Statistics())
	n, err := stats.Count(producerToWorker)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "enabled", InstrumentationEnabled.String())
}

func TestInstrumenter_DisabledIsIdentity(t *testing.T) {
	for _, instr := range []*Instrumenter{
		DisabledInstrumenter(),
		NewInstrumenter(nil),
		NewInstrumenter(NewService(InstrumentationDisabled, NewStatistics())),
		NewInstrumenter((*Service)(nil)),
	} {
		assert.False(t, instr.Enabled())
		assert.True(t, pipeline.IsIdentity(instr.StartTransition()))
		assert.True(t, pipeline.IsIdentity(instr.FinishTransition()))
		assert.True(t, pipeline.IsIdentity(instr.Around(pipeline.Identity())))
	}
}

func TestInstrumenter_RecordsHop(t *testing.T) {
	stats := NewStatistics()
	instr := NewInstrumenter(NewService(InstrumentationEnabled, stats), WithClock(stepClock(time.Millisecond)))

	var delivered *pipeline.Event
	h := pipeline.Apply(instr.Around(hopTo("worker")), func(ctx context.Context, ev *pipeline.Event) {
		delivered = ev
	})

	ev := pipeline.NewEvent("payload")
	h(core.WithExecutionKind(context.Background(), "producer"), ev)

	require.Same(t, ev, delivered)
	assert.Equal(t, "payload", delivered.Payload)

	samples, err := stats.Samples(producerToWorker)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Millisecond}, samples)
}

func TestInstrumenter_FinishWithoutStartPassesThrough(t *testing.T) {
	stats := NewStatistics()
	instr := NewInstrumenter(NewService(InstrumentationEnabled, stats))

	called := false
	h := pipeline.Apply(instr.FinishTransition(), func(ctx context.Context, ev *pipeline.Event) { called = true })
	h(context.Background(), pipeline.NewEvent(nil))

	assert.True(t, called)
	assert.Empty(t, stats.Transitions())
}

func TestInstrumenter_ConsumedBuilderNotReused(t *testing.T) {
	stats := NewStatistics()
	instr := NewInstrumenter(NewService(InstrumentationEnabled, stats))

	// A second finish mark downstream of the first must not record again
	p := pipeline.Chain(instr.StartTransition(), hopTo("worker"), instr.FinishTransition(), instr.FinishTransition())
	pipeline.Apply(p, nil)(core.WithExecutionKind(context.Background(), "producer"), pipeline.NewEvent(nil))

	n, err := stats.Count(producerToWorker)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInstrumenter_ConcurrentItemsOnOneHop(t *testing.T) {
	stats := NewStatistics()
	instr := NewInstrumenter(NewService(InstrumentationEnabled, stats))
	h := pipeline.Apply(instr.Around(hopTo("worker")), nil)

	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h(core.WithExecutionKind(context.Background(), "producer"), pipeline.NewEvent(nil))
		}()
	}
	wg.Wait()

	n, err := stats.Count(producerToWorker)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.Len(t, stats.Transitions(), 1)
}

type debugRecorder struct {
	core.NoOpLogger
	mu     sync.Mutex
	msgs   []string
	errors []error
}

func (r *debugRecorder) Debug(msg string, fields ...core.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	for _, f := range fields {
		if err, ok := f.Value.(error); ok && f.Key == "error" {
			r.errors = append(r.errors, err)
		}
	}
}

// TestInstrumenter_IncompleteBuilderIsLogged verifies a builder missing its
// start side is reported instead of recorded
func TestInstrumenter_IncompleteBuilderIsLogged(t *testing.T) {
	stats := NewStatistics()
	logger := &debugRecorder{}
	instr := NewInstrumenter(NewService(InstrumentationEnabled, stats), WithLogger(logger))

	called := false
	h := pipeline.Apply(instr.FinishTransition(), func(ctx context.Context, ev *pipeline.Event) { called = true })
	ctx := context.WithValue(core.WithExecutionKind(context.Background(), "worker"), pendingKey, NewBuilder())
	h(ctx, pipeline.NewEvent(nil))

	assert.True(t, called)
	assert.Empty(t, stats.Transitions())
	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Equal(t, []string{"transition record dropped"}, logger.msgs)
	require.Len(t, logger.errors, 1)
	assert.ErrorIs(t, logger.errors[0], ErrIncompleteRecord)
}
