// Package export writes analysis runs as gzip-compressed JSON artifacts,
// either to a Cloud Storage bucket or to a local directory.
package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/gzip"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"github.com/secmon-lab/riskcascade/pkg/utils/safe"
)

// ContentType of the exported artifacts
const ContentType = "application/json"

// ObjectName returns the artifact name of a run, relative to the export root
func ObjectName(run *model.AnalysisRun) string {
	return path.Join("runs", run.FinishedAt.UTC().Format("2006/01/02"), run.ID.String()+".json.gz")
}

// Encode writes run as gzip-compressed JSON
func Encode(w io.Writer, run *model.AnalysisRun) error {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return goerr.Wrap(err, "failed to create gzip writer")
	}

	enc := json.NewEncoder(zw)
	if err := enc.Encode(run); err != nil {
		_ = zw.Close()
		return goerr.Wrap(err, "failed to encode analysis run", goerr.V("run_id", run.ID))
	}
	if err := zw.Close(); err != nil {
		return goerr.Wrap(err, "failed to flush gzip writer", goerr.V("run_id", run.ID))
	}
	return nil
}

// Decode reads a run written by Encode
func Decode(r io.Reader) (*model.AnalysisRun, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open gzip stream")
	}
	defer func() { _ = zr.Close() }()

	var run model.AnalysisRun
	if err := json.NewDecoder(zr).Decode(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode analysis run")
	}
	return &run, nil
}

// GCS exports runs to a Cloud Storage bucket
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.Exporter = &GCS{}

// NewGCS creates an exporter writing to gs://bucket/prefix/
func NewGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	if bucket == "" {
		return nil, goerr.New("export bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

// Export uploads the run and returns its gs:// URL
func (x *GCS) Export(ctx context.Context, run *model.AnalysisRun) (string, error) {
	name := path.Join(x.prefix, ObjectName(run))

	w := x.client.Bucket(x.bucket).Object(name).NewWriter(ctx)
	w.ContentType = ContentType
	w.ContentEncoding = "gzip"
	w.Metadata = map[string]string{
		"run_id":    run.ID.String(),
		"converged": boolString(run.Converged()),
	}

	if err := Encode(w, run); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to upload analysis run",
			goerr.V("bucket", x.bucket), goerr.V("object", name))
	}

	url := "gs://" + x.bucket + "/" + name
	logging.From(ctx).Info("analysis run exported", "run_id", run.ID, "url", url)
	return url, nil
}

// Close releases the storage client
func (x *GCS) Close() error {
	return x.client.Close()
}

// File exports runs to a local directory
type File struct {
	dir string
}

var _ interfaces.Exporter = &File{}

// NewFile creates an exporter writing below dir
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Export writes the run and returns the file path
func (x *File) Export(ctx context.Context, run *model.AnalysisRun) (string, error) {
	p := filepath.Join(x.dir, filepath.FromSlash(ObjectName(run)))
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return "", goerr.Wrap(err, "failed to create export directory", goerr.V("path", p))
	}

	// #nosec G304 - path is built from the configured export directory
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create export file", goerr.V("path", p))
	}
	defer safe.Close(ctx, f)

	if err := Encode(f, run); err != nil {
		return "", goerr.Wrap(err, "failed to write export file", goerr.V("path", p))
	}

	logging.From(ctx).Info("analysis run exported", "run_id", run.ID, "path", p)
	return p, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
