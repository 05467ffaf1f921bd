package ingestion

import (
	"context"

	"github.com/synaptica-ai/formrelay/pkg/common/kafka"
	"github.com/synaptica-ai/formrelay/pkg/common/models"
	"github.com/synaptica-ai/formrelay/pkg/storage"
)

// Sink receives a copy of every record after it has been written to the
// Record Store. Sinks never see records the store rejected.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec models.Record) error
}

type KafkaSink struct {
	producer *kafka.Producer
}

func NewKafkaSink(producer *kafka.Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, rec models.Record) error {
	return s.producer.PublishEvent(ctx, EventRecordPersisted, "ingestion", eventData(rec))
}

// eventData is the Data payload of a record.persisted event.
func eventData(rec models.Record) map[string]interface{} {
	fields := make(map[string]interface{}, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	return map[string]interface{}{
		"timestamp": rec.Timestamp,
		"fields":    fields,
	}
}

const EventRecordPersisted = "record.persisted"

type RecentSink struct {
	list *storage.RecentList
}

func NewRecentSink(list *storage.RecentList) *RecentSink {
	return &RecentSink{list: list}
}

func (s *RecentSink) Name() string { return "redis" }

func (s *RecentSink) Write(ctx context.Context, rec models.Record) error {
	return s.list.Push(ctx, rec)
}

type ArchiveSink struct {
	archive *storage.Archive
}

func NewArchiveSink(archive *storage.Archive) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

func (s *ArchiveSink) Name() string { return "postgres" }

func (s *ArchiveSink) Write(ctx context.Context, rec models.Record) error {
	return s.archive.Write(ctx, rec)
}
