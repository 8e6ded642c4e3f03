// Package transfer moves whole datasets in and out of the service: the JSON
// export/import document and archiving exports to object storage.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/techrank/internal/domain/model"
)

// Sentinel kinds for transfer errors.
var (
	ErrInvalidPayload  = errors.New("invalid file format: the file must contain technicians and serviceRecords arrays")
	ErrArchiveDisabled = errors.New("export archiving is not configured")
)

const fileNameLayout = "2006-01-02"

// Document is the exported JSON shape.
type Document struct {
	Technicians    []model.Technician    `json:"technicians"`
	ServiceRecords []model.ServiceRecord `json:"serviceRecords"`
	ExportDate     time.Time             `json:"exportDate"`
}

// Encode writes ds as an indented export document stamped with now.
func Encode(w io.Writer, ds model.Dataset, now time.Time) error {
	doc := Document{
		Technicians:    ds.Technicians,
		ServiceRecords: ds.ServiceRecords,
		ExportDate:     now.UTC(),
	}
	if doc.Technicians == nil {
		doc.Technicians = []model.Technician{}
	}
	if doc.ServiceRecords == nil {
		doc.ServiceRecords = []model.ServiceRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// FileName is the download name of an export taken at now.
func FileName(now time.Time) string {
	return "technician-rankings-export-" + now.UTC().Format(fileNameLayout) + ".json"
}

// Decode reads an export document. The whole payload is checked before it is
// returned, so a caller never sees a partially valid dataset. exportDate is
// optional.
func Decode(r io.Reader) (model.Dataset, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return model.Dataset{}, fmt.Errorf("%w (%w)", ErrInvalidPayload, err)
	}

	var ds model.Dataset
	if err := decodeArray(raw, "technicians", &ds.Technicians); err != nil {
		return model.Dataset{}, err
	}
	if err := decodeArray(raw, "serviceRecords", &ds.ServiceRecords); err != nil {
		return model.Dataset{}, err
	}
	if err := ds.Validate(); err != nil {
		return model.Dataset{}, fmt.Errorf("%w (%v)", ErrInvalidPayload, err)
	}
	return ds, nil
}

func decodeArray(raw map[string]json.RawMessage, key string, dst interface{}) error {
	v, ok := raw[key]
	if !ok {
		return fmt.Errorf("%w (missing %s)", ErrInvalidPayload, key)
	}
	if b := bytes.TrimSpace(v); len(b) == 0 || b[0] != '[' {
		return fmt.Errorf("%w (%s is not an array)", ErrInvalidPayload, key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%w (%s: %v)", ErrInvalidPayload, key, err)
	}
	return nil
}
