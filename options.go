package cloudstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/backhaul-io/cloudstore/provider"
)

// Defaults applied when options are omitted.
const (
	DefaultDelimiter = "/"
	DefaultPartSize  = 10 * 1024 * 1024
	DefaultJobs      = 3
)

type config struct {
	delimiter  string
	partSize   int64
	jobs       int
	logger     *zap.Logger
	registerer prometheus.Registerer
	factory    provider.Factory
}

// Option configures an Adapter.
type Option func(*config)

func defaultConfig() *config {
	return &config{
		delimiter: DefaultDelimiter,
		partSize:  DefaultPartSize,
		jobs:      DefaultJobs,
		logger:    zap.NewNop(),
	}
}

// WithDelimiter sets the delimiter used when listing calls pass an empty
// one. Defaults to "/". WithDelimiter("") makes the empty argument mean a
// flat recursive listing.
func WithDelimiter(delimiter string) Option {
	return func(c *config) {
		c.delimiter = delimiter
	}
}

// WithPartSize sets the target part size for streamed multipart uploads.
// Values outside the provider's limits are clamped at upload time.
func WithPartSize(partSize int64) Option {
	return func(c *config) {
		if partSize > 0 {
			c.partSize = partSize
		}
	}
}

// WithJobs bounds how many parts a streamed upload transfers concurrently.
func WithJobs(jobs int) Option {
	return func(c *config) {
		if jobs > 0 {
			c.jobs = jobs
		}
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsRegisterer enables transfer metrics on the given registerer.
// Without it no collectors are registered.
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = registerer
	}
}

// WithProviderFactory sets the backing provider constructor. Defaults to the
// S3 provider with configuration from the environment.
func WithProviderFactory(factory provider.Factory) Option {
	return func(c *config) {
		c.factory = factory
	}
}
