package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog logger used by the dispatcher and the
// database layer. When graylogAddr is set, records are also shipped to
// Graylog over GELF/UDP.
func NewZerolog(w io.Writer, level, graylogAddr string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if graylogAddr != "" {
		gw, err := gelf.NewWriter(graylogAddr)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create graylog writer: %w", err)
		}
		gw.Facility = InstrumentationName
		out = zerolog.MultiLevelWriter(w, gw)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
