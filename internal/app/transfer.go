package service

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/okian/techrank/internal/adapters/transfer"
	"github.com/okian/techrank/internal/domain/ranking"
	"github.com/okian/techrank/pkg/logger"
	"github.com/okian/techrank/pkg/metrics"
)

// ExportFile is an encoded export ready for download or archiving.
type ExportFile struct {
	Name string
	Body []byte
}

// Export encodes every technician and record as an export document.
func (s *Service) Export(ctx context.Context) (ExportFile, error) {
	store, err := s.repo()
	if err != nil {
		return ExportFile{}, err
	}
	snap, err := store.Snapshot(ctx)
	if err != nil {
		metrics.RecordTransfer("export", "error")
		return ExportFile{}, err
	}

	now := s.now()
	var buf bytes.Buffer
	if err := transfer.Encode(&buf, snap, now); err != nil {
		metrics.RecordTransfer("export", "error")
		return ExportFile{}, err
	}
	metrics.RecordTransfer("export", "ok")
	return ExportFile{Name: transfer.FileName(now), Body: buf.Bytes()}, nil
}

// ArchiveExport exports and uploads the document through the archiver,
// returning the object key.
func (s *Service) ArchiveExport(ctx context.Context) (string, error) {
	if s.archiver == nil {
		return "", transfer.ErrArchiveDisabled
	}
	file, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	key, err := s.archiver.Archive(ctx, file.Name, file.Body)
	if err != nil {
		metrics.RecordTransfer("archive", "error")
		return "", fmt.Errorf("archive export: %w", err)
	}
	metrics.RecordTransfer("archive", "ok")
	s.logger.Info(ctx, "export archived", logger.String("key", key))
	return key, nil
}

// Import replaces all stored data with the payload. The payload is fully
// decoded and checked before the store is touched, so a bad file changes
// nothing. Cached metrics are recomputed from the imported records.
func (s *Service) Import(ctx context.Context, payload io.Reader) error {
	ds, err := transfer.Decode(payload)
	if err != nil {
		metrics.RecordTransfer("import", "invalid")
		return err
	}
	ds.Technicians = ranking.LiveMetrics(ds.Technicians, ds.ServiceRecords, nil)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	store, err := s.repo()
	if err != nil {
		return err
	}
	if err := store.Replace(ctx, ds); err != nil {
		metrics.RecordTransfer("import", "error")
		return err
	}
	s.deduper.Reset(ctx)
	metrics.RecordTransfer("import", "ok")
	metrics.UpdateTechniciansTotal(len(ds.Technicians))
	metrics.UpdateServiceRecordsTotal(len(ds.ServiceRecords))
	s.logger.Info(ctx, "data imported",
		logger.Int("technicians", len(ds.Technicians)),
		logger.Int("serviceRecords", len(ds.ServiceRecords)),
	)
	return nil
}

// Clear deletes every technician and record.
func (s *Service) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	store, err := s.repo()
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	s.deduper.Reset(ctx)
	metrics.UpdateTechniciansTotal(0)
	metrics.UpdateServiceRecordsTotal(0)
	s.logger.Info(ctx, "all data cleared")
	return nil
}
