package sink

import (
	"github.com/metisproject/metis/internal/common/metiscontext"
)

// TaskRunRow is one completed task execution, appended to the benchmark results
// table for offline comparison of schedulers.
type TaskRunRow struct {
	NodeId      int32   `parquet:"name=node_id, type=INT32"`
	TaskType    string  `parquet:"name=task_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Parameter   float64 `parquet:"name=parameter, type=DOUBLE"`
	AssignedAt  float64 `parquet:"name=assigned_at, type=DOUBLE"`
	CompletedAt float64 `parquet:"name=completed_at, type=DOUBLE"`
	Duration    float64 `parquet:"name=duration, type=DOUBLE"`
}

// Sink receives completed task records from the simulator.
type Sink interface {
	OnTaskCompleted(row TaskRunRow) error
	Close(ctx *metiscontext.Context)
}

// NullSink discards all records.
type NullSink struct{}

func (NullSink) OnTaskCompleted(TaskRunRow) error { return nil }
func (NullSink) Close(ctx *metiscontext.Context) {}
