package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const fileStamp = "20060102_150405"

// FileArchive writes per-cycle artifacts into a data directory. Files are only ever added.
type FileArchive struct {
	Dir string
}

func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileArchive{Dir: dir}, nil
}

// SaveRaw writes the unmodified fetch payload to crypto_data_<stamp>.json.
func (a *FileArchive) SaveRaw(raw []byte, at time.Time) (string, error) {
	return a.write("save_raw", "crypto_data_"+at.UTC().Format(fileStamp)+".json", raw)
}

// SaveChart writes a rendered chart to market_overview_<stamp>.png.
func (a *FileArchive) SaveChart(png []byte, at time.Time) (string, error) {
	return a.write("save_chart", "market_overview_"+at.UTC().Format(fileStamp)+".png", png)
}

func (a *FileArchive) write(op, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &StoreError{Op: op, Err: fmt.Errorf("%s: empty payload", name)}
	}
	path := filepath.Join(a.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &StoreError{Op: op, Err: err}
	}
	logrus.WithFields(logrus.Fields{
		"path": path,
		"size": humanize.Bytes(uint64(len(data))),
	}).Debug("artifact written")
	return path, nil
}
