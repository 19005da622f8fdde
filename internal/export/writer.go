// Package export writes finished sessions to the export directory as JSON
// (the tagged sample array) or Parquet files.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"backend-mtbtrainer/internal/sensor"
)

var (
	ErrNotFound      = errors.New("export not found")
	ErrInvalidName   = errors.New("invalid export name")
	ErrUnknownFormat = errors.New("unknown export format")
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatParquet:
		return FormatParquet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) Ext() string { return "." + string(f) }

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "application/json"
}

// Encode serialises samples in format f.
func Encode(f Format, samples []sensor.Sample) ([]byte, error) {
	switch f {
	case FormatJSON:
		return sensor.EncodeAll(samples)
	case FormatParquet:
		return MarshalParquet(samples)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func Decode(f Format, data []byte) ([]sensor.Sample, error) {
	switch f {
	case FormatJSON:
		return sensor.DecodeAll(data)
	case FormatParquet:
		return UnmarshalParquet(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

type File struct {
	Name    string    `json:"name"`
	Format  Format    `json:"format"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Writer stores exports as files in one directory.
type Writer struct {
	dir    string
	format Format
}

func NewWriter(dir string, format Format) (*Writer, error) {
	if format != FormatJSON && format != FormatParquet {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Writer{dir: dir, format: format}, nil
}

func (w *Writer) Dir() string { return w.dir }

// Write stores samples under name, swapping the extension for the writer's
// format, and returns the final file name. The file appears atomically.
func (w *Writer) Write(name string, samples []sensor.Sample) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + w.format.Ext()

	data, err := Encode(w.format, samples)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(w.dir, "export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err = os.Rename(tmpName, filepath.Join(w.dir, name)); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// List returns the exports in the directory, oldest name first.
func (w *Writer) List() ([]File, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format, ok := formatOf(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Name: e.Name(), Format: format, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (w *Writer) Read(name string) ([]sensor.Sample, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	format, ok := formatOf(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(name))
	}
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	samples, err := Decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return samples, nil
}

func (w *Writer) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(w.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func formatOf(name string) (Format, bool) {
	switch filepath.Ext(name) {
	case FormatJSON.Ext():
		return FormatJSON, true
	case FormatParquet.Ext():
		return FormatParquet, true
	}
	return "", false
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
