package sink

import (
	"os"
	"path/filepath"

	parquetWriter "github.com/xitongsys/parquet-go/writer"

	"github.com/metisproject/metis/internal/common/metiscontext"
)

// TaskRunWriter appends completed task records to a parquet file.
type TaskRunWriter struct {
	file   *os.File
	writer *parquetWriter.ParquetWriter
}

func NewTaskRunWriter(outputDir string) (*TaskRunWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	fileWriter, err := os.Create(filepath.Join(outputDir, "task_runs.parquet"))
	if err != nil {
		return nil, err
	}
	pw, err := parquetWriter.NewParquetWriterFromWriter(fileWriter, new(TaskRunRow), 1)
	if err != nil {
		return nil, err
	}
	return &TaskRunWriter{
		file:   fileWriter,
		writer: pw,
	}, nil
}

func (w *TaskRunWriter) OnTaskCompleted(row TaskRunRow) error {
	return w.writer.Write(row)
}

func (w *TaskRunWriter) Close(ctx *metiscontext.Context) {
	if err := w.writer.WriteStop(); err != nil {
		ctx.Log.Warnf("Could not cleanly close task_runs parquet file: %s", err)
	}
	if err := w.file.Close(); err != nil {
		ctx.Log.Warnf("Could not close task_runs parquet file: %s", err)
	}
}
