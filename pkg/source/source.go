package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/user/fricadelle/pkg/observability"
)

// ContentType is the detected format of a scan artifact.
type ContentType string

const (
	TypeJSON ContentType = "json"
	TypeCSV  ContentType = "csv"
	TypeYAML ContentType = "yaml"
	TypeXML  ContentType = "xml"
	TypeText ContentType = "text"
)

// Unit is one scan artifact ready for analysis. Content is text meant for a
// prompt: JSON is re-indented, YAML re-emitted, and known tool reports get a
// digest prepended. Tool names the scanner when it was recognized.
type Unit struct {
	Filename    string
	Path        string
	ContentType ContentType
	Content     string
	Tool        string
}

// Loader discovers scan artifacts below Dir.
type Loader struct {
	Dir    string
	Logger *zap.Logger
}

func NewLoader(dir string, logger *zap.Logger) *Loader {
	return &Loader{Dir: dir, Logger: logger}
}

// Load walks Dir in lexical order, skipping hidden files and directories.
// A file that cannot be read is logged and skipped; only a failure to walk
// the directory itself is returned.
func (l *Loader) Load(ctx context.Context) ([]Unit, error) {
	logger := observability.OrNop(l.Logger)
	var units []Unit

	err := filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != l.Dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		u, readErr := ReadUnit(path)
		if readErr != nil {
			logger.Warn("skipping unreadable scan file", zap.String("path", path), zap.Error(readErr))
			return nil
		}
		units = append(units, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", l.Dir, err)
	}
	return units, nil
}

// DetectContentType maps a file extension to a content type.
func DetectContentType(name string) ContentType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return TypeJSON
	case ".csv":
		return TypeCSV
	case ".yaml", ".yml":
		return TypeYAML
	case ".xml":
		return TypeXML
	default:
		return TypeText
	}
}

// ReadUnit loads a single artifact from disk.
func ReadUnit(path string) (Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Unit{}, err
	}
	name := filepath.Base(path)
	return NewUnit(name, path, data), nil
}

// NewUnit builds a Unit from raw bytes. Content that does not parse as its
// extension claims is kept verbatim.
func NewUnit(name, path string, data []byte) Unit {
	u := Unit{Filename: name, Path: path, ContentType: DetectContentType(name)}
	body := string(data)

	switch u.ContentType {
	case TypeJSON:
		var doc any
		if err := json.Unmarshal(data, &doc); err == nil {
			if indented, err := json.MarshalIndent(doc, "", "  "); err == nil {
				body = string(indented)
			}
		}
	case TypeYAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err == nil && doc.Kind != 0 {
			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(&doc); err == nil {
				body = buf.String()
			}
			_ = enc.Close()
		}
	}

	digest, tool := Digest(u.ContentType, data)
	u.Tool = tool
	if digest != "" {
		body = digest + "\n" + body
	}
	u.Content = body
	return u
}

// csvDigest describes the table shape so the model knows the columns even
// when the content is truncated.
func csvDigest(data []byte) string {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil || len(records) == 0 {
		return ""
	}
	return fmt.Sprintf("[CSV digest] %d data rows, columns: %s\n", len(records)-1, strings.Join(records[0], ", "))
}
