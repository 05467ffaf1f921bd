package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/formrelay/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ArchivedSubmission struct {
	ID         string            `gorm:"primaryKey;column:id"`
	ReceivedAt string            `gorm:"column:received_at;index"`
	Fields     datatypes.JSONMap `gorm:"column:fields"`
	CreatedAt  time.Time         `gorm:"column:created_at"`
}

func (ArchivedSubmission) TableName() string {
	return "submissions"
}

// Archive mirrors persisted records into PostgreSQL.
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) AutoMigrate() error {
	return a.db.AutoMigrate(&ArchivedSubmission{})
}

func (a *Archive) Write(ctx context.Context, rec models.Record) error {
	row := newArchivedSubmission(rec, time.Now().UTC())
	return a.db.WithContext(ctx).Create(row).Error
}

func newArchivedSubmission(rec models.Record, createdAt time.Time) *ArchivedSubmission {
	fields := make(datatypes.JSONMap, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	return &ArchivedSubmission{
		ID:         uuid.New().String(),
		ReceivedAt: rec.Timestamp,
		Fields:     fields,
		CreatedAt:  createdAt,
	}
}
