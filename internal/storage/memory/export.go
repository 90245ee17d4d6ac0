package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	v1 "github.com/openworld/physync/internal/storage/memory/export/v1"
	"github.com/openworld/physync/pkg/core"
)

const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// extension returns the file suffix for a compression setting. Unknown
// values fall back to plain JSON.
func extension(compression string) string {
	switch strings.ToLower(compression) {
	case CompressionGzip:
		return ".json.gz"
	case CompressionZstd:
		return ".json.zst"
	default:
		return ".json"
	}
}

// exportJSON writes the journal to disk. Callers hold mu.
func (b *Backend) exportJSON() error {
	export := v1.Build(&v1.SessionData{
		Session:          b.session,
		EndTime:          b.endTime,
		Entities:         b.entities,
		OwnershipChanges: b.ownership,
		SyncStats:        b.stats,
	})

	name := strings.ReplaceAll(b.session.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "" {
		name = "session"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s%s", name, timestamp, extension(b.cfg.Compression))

	outputPath := filepath.Join(b.cfg.OutputDir, filename)
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeCompressedJSON(outputPath, b.cfg.Compression, export); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = core.ExportMetadata{
		SessionID:   b.session.ID,
		SessionName: b.session.Name,
		Duration:    b.endTime.Sub(b.session.StartTime).Seconds(),
		Entities:    len(b.entities),
		Edits:       b.editCount,
		Ownership:   len(b.ownership),
	}
	return nil
}

func writeCompressedJSON(path, compression string, data v1.Export) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	var w io.WriteCloser
	switch strings.ToLower(compression) {
	case CompressionGzip:
		w = gzip.NewWriter(f)
	case CompressionZstd:
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		w = zw
	default:
		return json.NewEncoder(f).Encode(data)
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	return nil
}

// ReadJournal decodes an exported journal, picking the decompressor from the
// file name.
func ReadJournal(path string) (v1.Export, error) {
	var out v1.Export

	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return out, fmt.Errorf("failed to open gzip journal: %w", err)
		}
		defer gr.Close()
		r = gr
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return out, fmt.Errorf("failed to open zstd journal: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode journal: %w", err)
	}
	return out, nil
}
