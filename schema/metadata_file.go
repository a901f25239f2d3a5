package schema

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/io"
)

const MetadataFileExt = ".json"

func MetadataPath(dir, tableName string) string {
	return filepath.Join(dir, tableName+MetadataFileExt)
}

// TableNameFromMetadataFile returns "" for files that are not sidecars
func TableNameFromMetadataFile(fileName string) string {
	if !strings.HasSuffix(fileName, MetadataFileExt) || strings.HasPrefix(fileName, io.TempFilePrefix) {
		return ""
	}
	return strings.TrimSuffix(fileName, MetadataFileExt)
}

type metadataFile struct {
	TableName *string         `json:"table_name"`
	Fields    json.RawMessage `json:"fields"`
}

// LoadMetadata reads a table sidecar. The embedded table name must match the file name.
func LoadMetadata(path string, cfg config.Config) (Metadata, error) {

	raw, readErr := io.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return Metadata{}, dberr.Wrap(dberr.NotFound, readErr, "metadata %s", path)
		}
		return Metadata{}, dberr.Wrap(dberr.Internal, readErr, "unable to read metadata %s", path)
	}

	var file metadataFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return Metadata{}, dberr.Wrap(dberr.InvalidArgument, err, "malformed metadata %s", path)
	}

	if file.TableName == nil {
		return Metadata{}, dberr.New(dberr.InvalidArgument, "metadata %s has no table_name", path)
	}

	expected := TableNameFromMetadataFile(filepath.Base(path))
	if *file.TableName != expected {
		return Metadata{}, dberr.New(dberr.Inconsistent, "metadata %s describes table %q", path, *file.TableName)
	}

	result := Metadata{TableName: expected}

	if len(file.Fields) > 0 && string(file.Fields) != "null" {
		if err := json.Unmarshal(file.Fields, &result.Fields); err != nil {
			var dbErr *dberr.Error
			if errors.As(err, &dbErr) {
				return Metadata{}, err
			}
			return Metadata{}, dberr.Wrap(dberr.InvalidArgument, err, "malformed fields in %s", path)
		}
	}

	if err := result.Validate(cfg); err != nil {
		return Metadata{}, err
	}

	return result, nil
}

// Validate checks a field list against the configured kind and type set.
func (m Metadata) Validate(cfg config.Config) error {

	if m.TableName == "" {
		return dberr.New(dberr.EmptyNotAllowed, "table name is empty")
	}

	if cfg.IsSQL() && len(m.Fields) == 0 {
		return dberr.New(dberr.EmptyNotAllowed, "table %s has no fields", m.TableName)
	}

	if err := m.validateFields(); err != nil {
		return err
	}

	for _, f := range m.Fields {
		if !cfg.IsTypeSupported(f.Type.String()) {
			return dberr.New(dberr.Unsupported, "type %s of field %q is not supported", f.Type, f.Name)
		}
	}

	return nil
}

// SaveMetadata writes a new sidecar, sidecars are write-once.
func SaveMetadata(dir string, m Metadata, cfg config.Config) error {

	if err := m.Validate(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return dberr.Wrap(dberr.Internal, err, "unable to create metadata dir")
	}

	out := m
	if cfg.IsNoSQL() && len(m.Fields) == 0 {
		out.Fields = nil
	}

	encoded, encodeErr := json.Marshal(out)
	if encodeErr != nil {
		return dberr.Wrap(dberr.Internal, encodeErr, "unable to encode metadata of %s", m.TableName)
	}

	path := MetadataPath(dir, m.TableName)

	if err := io.CreateFileExclusive(path, encoded); err != nil {
		if errors.Is(err, os.ErrExist) {
			return dberr.New(dberr.AlreadyExists, "metadata for table %s already exists", m.TableName)
		}
		return dberr.Wrap(dberr.Internal, err, "unable to write metadata of %s", m.TableName)
	}

	return nil
}

func RemoveMetadata(dir, tableName string) error {
	err := os.Remove(MetadataPath(dir, tableName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return dberr.Wrap(dberr.Internal, err, "unable to remove metadata of %s", tableName)
	}
	return nil
}
