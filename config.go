package foreman

import (
	"runtime"

	"github.com/JeremyLoy/config"
	"github.com/rs/zerolog"
)

// WorldConfig holds the tuning knobs of a world. None of them changes results.
type WorldConfig struct {
	// ThreadCount bounds the systems running at once; 0 or 1 runs everything on the caller.
	ThreadCount int `config:"FOREMAN_THREAD_COUNT"`
	// ArchetypeCapacity is the initial row capacity of new archetype columns.
	ArchetypeCapacity int `config:"FOREMAN_ARCHETYPE_CAPACITY"`
	// QueueShards is the number of independently locked shards of the mutation queue.
	QueueShards int `config:"FOREMAN_QUEUE_SHARDS"`
	// ActionCapacity bounds the number of distinct actions.
	ActionCapacity int `config:"FOREMAN_ACTION_CAPACITY"`
	// LogLevel applies to the logger given with WithLogger.
	LogLevel string `config:"FOREMAN_LOG_LEVEL"`
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() WorldConfig {
	return WorldConfig{
		ThreadCount:       runtime.GOMAXPROCS(0),
		ArchetypeCapacity: 16,
		QueueShards:       16,
		ActionCapacity:    1024,
		LogLevel:          zerolog.InfoLevel.String(),
	}
}

// ConfigFromEnv returns the defaults overridden by FOREMAN_* environment variables.
func ConfigFromEnv() (WorldConfig, error) {
	cfg := DefaultConfig()
	if err := config.FromEnv().To(&cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Option configures a world at creation.
type Option func(*worldOptions)

type worldOptions struct {
	config WorldConfig
	logger *zerolog.Logger
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg WorldConfig) Option {
	return func(o *worldOptions) {
		o.config = cfg
	}
}

func WithThreadCount(threads int) Option {
	return func(o *worldOptions) {
		o.config.ThreadCount = threads
	}
}

func WithArchetypeCapacity(capacity int) Option {
	return func(o *worldOptions) {
		o.config.ArchetypeCapacity = capacity
	}
}

func WithQueueShards(shards int) Option {
	return func(o *worldOptions) {
		o.config.QueueShards = shards
	}
}

// WithLogger makes the world log through logger. Worlds are silent by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *worldOptions) {
		o.logger = &logger
	}
}

func buildOptions(opts []Option) (worldOptions, error) {
	o := worldOptions{config: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.config.QueueShards < 1 {
		o.config.QueueShards = 1
	}
	if o.config.ActionCapacity < 1 {
		o.config.ActionCapacity = DefaultConfig().ActionCapacity
	}
	if o.config.ArchetypeCapacity < 0 {
		o.config.ArchetypeCapacity = 0
	}
	if o.logger == nil {
		nop := zerolog.Nop()
		o.logger = &nop
		return o, nil
	}
	if o.config.LogLevel != "" {
		level, err := zerolog.ParseLevel(o.config.LogLevel)
		if err != nil {
			return o, err
		}
		leveled := o.logger.Level(level)
		o.logger = &leveled
	}
	return o, nil
}
