package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// settlementPrefix is the key prefix under which settlement reports are
// stored, partitioned by the year-month of resolution:
//
//	archive/settlements/2025-01/<conditionID>.json
const settlementPrefix = "archive/settlements"

// ArchiveImpl implements domain.Archiver by serializing settlement reports
// to JSON and uploading them to S3. One object is written per resolved
// condition; re-archiving the same condition overwrites the object, which is
// harmless because resolution is terminal and the report cannot change.
type ArchiveImpl struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl. The audit store may be nil, in
// which case archival events are not logged.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, audit: audit}
}

// ArchiveSettlement uploads the report as a single JSON object and returns
// the object key.
func (a *ArchiveImpl) ArchiveSettlement(ctx context.Context, report domain.SettlementReport) (string, error) {
	buf, err := marshalReport(report)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal settlement report: %w", err)
	}

	path := settlementPath(report)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement upload: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.settlement", map[string]any{
			"path":      path,
			"condition": string(report.Condition.ID),
			"outcome":   string(report.Outcome),
			"settled":   len(report.Settled),
			"voided":    len(report.Voided),
		}); err != nil {
			return path, fmt.Errorf("s3blob: archive settlement audit log: %w", err)
		}
	}

	return path, nil
}

// SettlementPrefix returns the key prefix holding all archived settlement
// reports, for use with BlobReader.List.
func SettlementPrefix() string {
	return settlementPrefix + "/"
}

func settlementPath(report domain.SettlementReport) string {
	return fmt.Sprintf("%s/%s/%s.json",
		settlementPrefix,
		report.ReportedAt.Format("2006-01"),
		report.Condition.ID,
	)
}

// marshalReport serialises the report with a stable wire shape so archived
// objects stay readable as the in-memory types evolve.
func marshalReport(report domain.SettlementReport) ([]byte, error) {
	type iouRecord struct {
		ID        string    `json:"id"`
		Issuer    string    `json:"issuer"`
		Holder    string    `json:"holder"`
		Amount    int64     `json:"amount"`
		State     string    `json:"state"`
		CreatedAt time.Time `json:"created_at"`
	}
	type wireReport struct {
		ConditionID string      `json:"condition_id"`
		Description string      `json:"description"`
		Outcome     string      `json:"outcome"`
		ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
		ReportedAt  time.Time   `json:"reported_at"`
		Settled     []iouRecord `json:"settled"`
		Voided      []iouRecord `json:"voided"`
	}

	toRecords := func(ious []domain.IOU) []iouRecord {
		out := make([]iouRecord, 0, len(ious))
		for _, iou := range ious {
			out = append(out, iouRecord{
				ID:        string(iou.ID),
				Issuer:    string(iou.Issuer),
				Holder:    string(iou.Holder),
				Amount:    iou.Amount.Millibucks(),
				State:     string(iou.State),
				CreatedAt: iou.CreatedAt,
			})
		}
		return out
	}

	w := wireReport{
		ConditionID: string(report.Condition.ID),
		Description: report.Condition.Description,
		Outcome:     string(report.Outcome),
		ResolvedAt:  report.Condition.ResolvedAt,
		ReportedAt:  report.ReportedAt,
		Settled:     toRecords(report.Settled),
		Voided:      toRecords(report.Voided),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
