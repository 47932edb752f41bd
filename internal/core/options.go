package core

import (
	"log/slog"

	"github.com/illarion/ofdcrypt/internal/archive"
	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/storage"
)

type config struct {
	logger     *slog.Logger
	maxExtract int64
	tempDir    string
	algorithm  crypto.Algorithm
	store      *storage.Storage
}

func newConfig(opts []Option) config {
	cfg := config{
		logger:     slog.Default(),
		maxExtract: archive.DefaultMaxBytes,
		algorithm:  crypto.SM4,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a pipeline.
type Option func(*config)

// WithLogger sets the logger for debug output. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxExtractSize sets the decompressed size budget for the source
// package. Non-positive values keep archive.DefaultMaxBytes.
func WithMaxExtractSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxExtract = n
		}
	}
}

// WithTempDir sets the parent directory of the workspace. Empty means
// os.TempDir().
func WithTempDir(dir string) Option {
	return func(c *config) {
		c.tempDir = dir
	}
}

// WithAlgorithm selects the content cipher. Defaults to SM4.
func WithAlgorithm(alg crypto.Algorithm) Option {
	return func(c *config) {
		c.algorithm = alg
	}
}

// WithStateStore persists manifests and done markers in store. The
// pipeline does not close it.
func WithStateStore(store *storage.Storage) Option {
	return func(c *config) {
		c.store = store
	}
}
