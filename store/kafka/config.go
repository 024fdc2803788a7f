package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kochabx/portal/core/tag"
)

type Balancer int

const (
	BalancerLeastBytes Balancer = iota
	BalancerHash
)

type Config struct {
	Brokers  []string `mapstructure:"brokers" default:"localhost:9092"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	// 0 least bytes, 1 hash of the message key
	Balancer               Balancer      `mapstructure:"balancer"`
	AllowAutoTopicCreation bool          `mapstructure:"allow_auto_topic_creation"`
	Timeout                time.Duration `mapstructure:"timeout" default:"3s"`
	WriteTimeout           time.Duration `mapstructure:"write_timeout" default:"5s"`
	CloseTimeout           time.Duration `mapstructure:"close_timeout" default:"5s"`
	BatchTimeout           time.Duration `mapstructure:"batch_timeout" default:"100ms"`
}

func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) balancer() kafka.Balancer {
	if c.Balancer == BalancerHash {
		return &kafka.Hash{}
	}
	return &kafka.LeastBytes{}
}
