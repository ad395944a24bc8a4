// Package storage holds model artifacts. A FileStore is either a local
// directory or an S3 bucket prefix; model.Save and model.Load only see the
// interface.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileStore reads and writes whole files by slash-separated path.
// Implementations are safe for concurrent use.
type FileStore interface {
	// Read opens path. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	// Write returns a writer whose Close commits the file. Readers never
	// observe a partially written file.
	Write(ctx context.Context, path string) (io.WriteCloser, error)
	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)
}

// Abort discards a file opened by FileStore.Write without committing it.
// Writers that cannot abort are closed.
func Abort(w io.WriteCloser, cause error) {
	if a, ok := w.(interface{ Abort(error) }); ok {
		a.Abort(cause)
		return
	}
	w.Close()
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "local" (default) or "s3".
	Backend string `yaml:"backend"`
	// Dir is the local root.
	Dir string `yaml:"dir"`

	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	// Endpoint overrides the S3 endpoint for S3-compatible services;
	// path-style addressing is used when it is set.
	Endpoint string `yaml:"endpoint"`
}

// Open builds the store described by cfg. The S3 backend takes
// credentials from the default AWS chain.
func Open(ctx context.Context, cfg Config) (FileStore, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("storage: local backend needs a directory")
		}
		return NewLocal(cfg.Dir)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 backend needs a bucket")
		}
		var opts []func(*config.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("storage: load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = &cfg.Endpoint
				o.UsePathStyle = true
			}
		})
		return NewS3(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
