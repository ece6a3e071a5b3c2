package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

var errNoBrokers = errors.New("kafka: at least one broker is required")

// ProducerConfig configures the shared writer. Zero fields take the defaults
// applied in NewProducer.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int // -1 waits for all in-sync replicas
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	Linger       time.Duration
	Async        bool
	// HashByKey routes every event of a ticker to the same partition.
	HashByKey bool
}

func (c *ProducerConfig) normalize() error {
	if len(c.Brokers) == 0 {
		return errNoBrokers
	}
	if c.Compression == "" {
		c.Compression = "gzip"
	}
	if _, ok := compressions[c.Compression]; !ok {
		return fmt.Errorf("kafka: unknown compression %q", c.Compression)
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	setDefault(&c.MaxAttempts, 3)
	setDefault(&c.BatchSize, 100)
	setDefault(&c.BatchBytes, 1<<20)
	setDefaultDur(&c.WriteTimeout, 10*time.Second)
	setDefaultDur(&c.ReadTimeout, 10*time.Second)
	setDefaultDur(&c.Linger, 50*time.Millisecond)
	return nil
}

// ConsumerConfig configures the group reader and its worker pool.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Workers    int
	BufferSize int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	// DLQTopic receives messages that exhausted their retries; empty drops them.
	DLQTopic string
	MinBytes int
	MaxBytes int
}

func (c *ConsumerConfig) normalize() error {
	if len(c.Brokers) == 0 {
		return errNoBrokers
	}
	if c.GroupID == "" {
		c.GroupID = "newsvol"
	}
	setDefault(&c.Workers, 1)
	setDefault(&c.BufferSize, 10)
	setDefault(&c.RetryMax, 3)
	setDefault(&c.MinBytes, 1)
	setDefault(&c.MaxBytes, 10e6)
	setDefaultDur(&c.BackoffMin, 200*time.Millisecond)
	setDefaultDur(&c.BackoffMax, 5*time.Second)
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = c.BackoffMin
	}
	return nil
}

var compressions = map[string]kafka.Compression{
	"none":   0,
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setDefaultDur(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}
