package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// SettlementReport is the cold-storage record written when a condition
// resolves: the final state of every IOU that referenced it.
type SettlementReport struct {
	Condition  Condition
	Outcome    ConditionState
	Settled    []IOU
	Voided     []IOU
	ReportedAt time.Time
}

// Archiver writes settlement reports to cold storage.
type Archiver interface {
	ArchiveSettlement(ctx context.Context, report SettlementReport) (path string, err error)
}
