package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/pkg/metrics"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const insertBatchSize = 200

// technicianRow is the persisted form of model.Technician. Seq keeps
// insertion order stable across backends.
type technicianRow struct {
	ID                   string    `gorm:"primaryKey;size:64"`
	Seq                  int64     `gorm:"not null;index"`
	Name                 string    `gorm:"not null;size:100"`
	TotalCalls           int       `gorm:"not null;default:0"`
	AvgServiceTime       float64   `gorm:"not null;default:0"`
	AvgFirstResponseTime float64   `gorm:"not null;default:0"`
	AvgRating            float64   `gorm:"not null;default:0"`
	CreatedAt            time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false"`
}

func (technicianRow) TableName() string { return "technicians" }

type serviceRecordRow struct {
	ID                string    `gorm:"primaryKey;size:64"`
	Seq               int64     `gorm:"not null;index"`
	TechnicianID      string    `gorm:"not null;index;size:64"`
	Date              time.Time `gorm:"not null;index"`
	ServiceTime       float64   `gorm:"not null"`
	FirstResponseTime float64   `gorm:"not null"`
	Rating            float64   `gorm:"not null"`
	Notes             string    `gorm:"size:2000"`
}

func (serviceRecordRow) TableName() string { return "service_records" }

func technicianToRow(t model.Technician, seq int64) technicianRow {
	return technicianRow{
		ID:                   t.ID,
		Seq:                  seq,
		Name:                 t.Name,
		TotalCalls:           t.TotalCalls,
		AvgServiceTime:       t.AvgServiceTime,
		AvgFirstResponseTime: t.AvgFirstResponseTime,
		AvgRating:            t.AvgRating,
		CreatedAt:            t.CreatedAt.UTC(),
		UpdatedAt:            t.UpdatedAt.UTC(),
	}
}

func (r technicianRow) model() model.Technician {
	return model.Technician{
		ID:                   r.ID,
		Name:                 r.Name,
		TotalCalls:           r.TotalCalls,
		AvgServiceTime:       r.AvgServiceTime,
		AvgFirstResponseTime: r.AvgFirstResponseTime,
		AvgRating:            r.AvgRating,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

func recordToRow(r model.ServiceRecord, seq int64) serviceRecordRow {
	return serviceRecordRow{
		ID:                r.ID,
		Seq:               seq,
		TechnicianID:      r.TechnicianID,
		Date:              r.Date.UTC(),
		ServiceTime:       r.ServiceTime,
		FirstResponseTime: r.FirstResponseTime,
		Rating:            r.Rating,
		Notes:             r.Notes,
	}
}

func (r serviceRecordRow) model() model.ServiceRecord {
	return model.ServiceRecord{
		ID:                r.ID,
		TechnicianID:      r.TechnicianID,
		Date:              r.Date.UTC(),
		ServiceTime:       r.ServiceTime,
		FirstResponseTime: r.FirstResponseTime,
		Rating:            r.Rating,
		Notes:             r.Notes,
	}
}

// GormStore persists to a SQL database through gorm. Referential rules are
// enforced here rather than by foreign keys.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore migrates the schema on db and wraps it.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db.Dialector.Name() == "sqlite" {
		// A sqlite :memory: database lives in a single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, storeErr("open", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&technicianRow{}, &serviceRecordRow{}); err != nil {
		return nil, storeErr("migrate", err)
	}
	return &GormStore{db: db}, nil
}

// OpenGorm opens dialector with the store's gorm settings and migrates it.
func OpenGorm(dialector gorm.Dialector, opts ...Option) (*GormStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(o.gormLogLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, storeErr("open", err)
	}
	return NewGormStore(db)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

func (s *GormStore) fail(op string, err error) error {
	metrics.RecordErrorByComponent("repository", op)
	return storeErr(op, err)
}

func nextSeq(tx *gorm.DB, row interface{}) (int64, error) {
	var max int64
	err := tx.Model(row).Select("COALESCE(MAX(seq), 0)").Scan(&max).Error
	return max + 1, err
}

func (s *GormStore) CreateTechnician(ctx context.Context, t model.Technician) error {
	defer observe("create_technician", time.Now())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextSeq(tx, &technicianRow{})
		if err != nil {
			return err
		}
		row := technicianToRow(t, seq)
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("technician %q: %w", t.ID, ErrDuplicate)
	}
	if err != nil {
		return s.fail("create_technician", err)
	}
	return nil
}

func (s *GormStore) UpdateTechnician(ctx context.Context, t model.Technician) error {
	defer observe("update_technician", time.Now())
	res := s.db.WithContext(ctx).Model(&technicianRow{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"name":                    t.Name,
		"total_calls":             t.TotalCalls,
		"avg_service_time":        t.AvgServiceTime,
		"avg_first_response_time": t.AvgFirstResponseTime,
		"avg_rating":              t.AvgRating,
		"created_at":              t.CreatedAt.UTC(),
		"updated_at":              t.UpdatedAt.UTC(),
	})
	if res.Error != nil {
		return s.fail("update_technician", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("technician %q: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteTechnician(ctx context.Context, id string) error {
	defer observe("delete_technician", time.Now())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("technician_id = ?", id).Delete(&serviceRecordRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&technicianRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("technician %q: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return s.fail("delete_technician", err)
	}
	return err
}

func (s *GormStore) GetTechnician(ctx context.Context, id string) (model.Technician, error) {
	defer observe("get_technician", time.Now())
	var row technicianRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Technician{}, fmt.Errorf("technician %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Technician{}, s.fail("get_technician", err)
	}
	return row.model(), nil
}

func (s *GormStore) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	defer observe("list_technicians", time.Now())
	var rows []technicianRow
	if err := s.db.WithContext(ctx).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, s.fail("list_technicians", err)
	}
	out := make([]model.Technician, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *GormStore) AddServiceRecord(ctx context.Context, r model.ServiceRecord) error {
	defer observe("add_service_record", time.Now())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&technicianRow{}).Where("id = ?", r.TechnicianID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("technician %q: %w", r.TechnicianID, ErrNotFound)
		}
		seq, err := nextSeq(tx, &serviceRecordRow{})
		if err != nil {
			return err
		}
		row := recordToRow(r, seq)
		return tx.Create(&row).Error
	})
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("service record %q: %w", r.ID, ErrDuplicate)
	default:
		return s.fail("add_service_record", err)
	}
}

func (s *GormStore) GetServiceRecord(ctx context.Context, id string) (model.ServiceRecord, error) {
	defer observe("get_service_record", time.Now())
	var row serviceRecordRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ServiceRecord{}, fmt.Errorf("service record %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.ServiceRecord{}, s.fail("get_service_record", err)
	}
	return row.model(), nil
}

func (s *GormStore) ListServiceRecords(ctx context.Context) ([]model.ServiceRecord, error) {
	defer observe("list_service_records", time.Now())
	var rows []serviceRecordRow
	if err := s.db.WithContext(ctx).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, s.fail("list_service_records", err)
	}
	out := make([]model.ServiceRecord, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *GormStore) Snapshot(ctx context.Context) (model.Dataset, error) {
	defer observe("snapshot", time.Now())
	var ds model.Dataset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var techs []technicianRow
		if err := tx.Order("seq asc").Find(&techs).Error; err != nil {
			return err
		}
		var recs []serviceRecordRow
		if err := tx.Order("seq asc").Find(&recs).Error; err != nil {
			return err
		}
		ds.Technicians = make([]model.Technician, len(techs))
		for i, r := range techs {
			ds.Technicians[i] = r.model()
		}
		ds.ServiceRecords = make([]model.ServiceRecord, len(recs))
		for i, r := range recs {
			ds.ServiceRecords[i] = r.model()
		}
		return nil
	})
	if err != nil {
		return model.Dataset{}, s.fail("snapshot", err)
	}
	return ds, nil
}

func (s *GormStore) Replace(ctx context.Context, ds model.Dataset) error {
	defer observe("replace", time.Now())
	if err := ds.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAll(tx); err != nil {
			return err
		}
		if len(ds.Technicians) > 0 {
			rows := make([]technicianRow, len(ds.Technicians))
			for i, t := range ds.Technicians {
				rows[i] = technicianToRow(t, int64(i+1))
			}
			if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(ds.ServiceRecords) > 0 {
			rows := make([]serviceRecordRow, len(ds.ServiceRecords))
			for i, r := range ds.ServiceRecords {
				rows[i] = recordToRow(r, int64(i+1))
			}
			if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.fail("replace", err)
	}
	return nil
}

func (s *GormStore) Clear(ctx context.Context) error {
	defer observe("clear", time.Now())
	if err := s.db.WithContext(ctx).Transaction(deleteAll); err != nil {
		return s.fail("clear", err)
	}
	return nil
}

func deleteAll(tx *gorm.DB) error {
	if err := tx.Where("1 = 1").Delete(&serviceRecordRow{}).Error; err != nil {
		return err
	}
	return tx.Where("1 = 1").Delete(&technicianRow{}).Error
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storeErr("close", err)
	}
	return sqlDB.Close()
}
