package config

import (
	"context"
	"io"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/service/export"
	"github.com/urfave/cli/v3"
)

// Export holds CLI flags for the run artifact destination
type Export struct {
	bucket string
	prefix string
	dir    string
}

func (x *Export) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "export-bucket",
			Usage:       "Cloud Storage bucket receiving run artifacts",
			Category:    "Export",
			Destination: &x.bucket,
			Sources:     cli.EnvVars("RISKCASCADE_EXPORT_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "export-prefix",
			Usage:       "Object name prefix within the export bucket",
			Category:    "Export",
			Destination: &x.prefix,
			Sources:     cli.EnvVars("RISKCASCADE_EXPORT_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "export-dir",
			Usage:       "Local directory receiving run artifacts",
			Category:    "Export",
			Destination: &x.dir,
			Sources:     cli.EnvVars("RISKCASCADE_EXPORT_DIR"),
		},
	}
}

func (x Export) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
		slog.String("dir", x.dir),
	)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Configure creates an Exporter, or returns nil when no destination is set.
// The returned closer must be closed after the last export.
func (x *Export) Configure(ctx context.Context) (interfaces.Exporter, io.Closer, error) {
	switch {
	case x.bucket != "" && x.dir != "":
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "--export-bucket and --export-dir are mutually exclusive")

	case x.bucket != "":
		gcs, err := export.NewGCS(ctx, x.bucket, x.prefix)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to configure GCS export", goerr.V("bucket", x.bucket))
		}
		return gcs, gcs, nil

	case x.dir != "":
		return export.NewFile(x.dir), nopCloser{}, nil

	default:
		return nil, nopCloser{}, nil
	}
}
