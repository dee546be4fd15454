package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = 500

type parquetRow struct {
	Seq        int64  `parquet:"name=seq, type=INT64"`
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Subject    string `parquet:"name=subject, type=BYTE_ARRAY, convertedtype=UTF8"`
	Window     int64  `parquet:"name=window, type=INT64"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportResult describes a written parquet file.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// Export writes every event matching f (Limit is ignored) to a parquet file
// under dir.
func (i *Indexer) Export(ctx context.Context, dir string, f Filter) (ExportResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("indexer: create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("events-%s.parquet", i.nowFn().UTC().Format("20060102T150405.000000000")))
	file, err := os.Create(path)
	if err != nil {
		return ExportResult{}, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return ExportResult{}, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := 0
	page := f
	page.Limit = exportPageSize
	for {
		records, err := i.List(ctx, page)
		if err != nil {
			pw.WriteStop()
			file.Close()
			return ExportResult{}, err
		}
		for _, rec := range records {
			row := &parquetRow{
				Seq:        int64(rec.Seq),
				ID:         rec.ID,
				Type:       rec.Type,
				Subject:    rec.Subject,
				Window:     int64(rec.Window),
				Attributes: rec.Attributes,
				CreatedAt:  rec.CreatedAt.Format(time.RFC3339Nano),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				file.Close()
				return ExportResult{}, fmt.Errorf("indexer: write parquet row: %w", err)
			}
			rows++
		}
		if len(records) < exportPageSize {
			break
		}
		page.AfterSeq = records[len(records)-1].Seq
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return ExportResult{}, fmt.Errorf("indexer: finalise parquet: %w", err)
	}
	if err := file.Close(); err != nil {
		return ExportResult{}, fmt.Errorf("indexer: close parquet: %w", err)
	}
	i.logger.Info("exported events", "path", path, "rows", rows)
	return ExportResult{Path: path, Rows: rows}, nil
}
