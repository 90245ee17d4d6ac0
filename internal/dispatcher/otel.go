package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/openworld/physync/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// instruments are per dispatcher; counters carry a "command" attribute.
type instruments struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
}

func newInstruments(queueLengths func() map[string]int) (instruments, error) {
	m := meter()
	var ins instruments

	queueSize, err := m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered handler queue"),
	)
	if err != nil {
		return ins, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for cmd, n := range queueLengths() {
			o.ObserveInt64(queueSize, int64(n), metric.WithAttributes(attribute.String("command", cmd)))
		}
		return nil
	}, queueSize)
	if err != nil {
		return ins, fmt.Errorf("registering queue callback: %w", err)
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&ins.processed, "dispatcher.events.processed", "Buffered events handled"},
		{&ins.dropped, "dispatcher.events.dropped", "Events rejected because the handler queue was full"},
		{&ins.failed, "dispatcher.events.failed", "Buffered events whose handler returned an error"},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return ins, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}
	return ins, nil
}

func (ins instruments) add(c metric.Int64Counter, command string) {
	c.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}
