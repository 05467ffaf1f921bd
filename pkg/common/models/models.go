package models

import "time"

// TimestampLayout is the key format of the Record Store document.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// FieldMap is a decoded form submission: field name to field value.
type FieldMap map[string]string

// Record is a FieldMap tagged with the time the Ingestion Service received it.
type Record struct {
	Timestamp string   `json:"timestamp"`
	Fields    FieldMap `json:"fields"`
}

// NewRecord stamps fields with t in TimestampLayout.
func NewRecord(t time.Time, fields FieldMap) Record {
	return Record{Timestamp: t.Format(TimestampLayout), Fields: fields}
}

// Document is the on-disk Record Store layout: timestamp to field map.
type Document map[string]FieldMap

// Event bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // record.persisted
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
