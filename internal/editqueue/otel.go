package editqueue

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/openworld/physync/internal/editqueue"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
