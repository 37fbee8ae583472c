package main

import (
	"fmt"
	"os"
	"time"

	"github.com/luca-patrignani/intuition/turn"
	"gopkg.in/yaml.v2"
)

// config is the YAML file given to play. Timeouts are in milliseconds.
type config struct {
	Namespace        string `yaml:"namespace"`
	Registry         string `yaml:"registry"`
	AnswerTimeout    int    `yaml:"answer_timeout"`
	CollectionWindow int    `yaml:"collection_window"`
	QuestionTimeout  int    `yaml:"question_timeout"`
	LivenessPeriod   int    `yaml:"liveness_period"`
	CallTimeout      int    `yaml:"call_timeout"`
	RetryInterval    int    `yaml:"retry_interval"`
}

func defaultConfig() config {
	d := turn.DefaultConfig()
	return config{
		Namespace:        d.Namespace,
		AnswerTimeout:    int(d.AnswerTimeout.Milliseconds()),
		CollectionWindow: int(d.CollectionWindow.Milliseconds()),
		QuestionTimeout:  int(d.QuestionTimeout.Milliseconds()),
		LivenessPeriod:   int(d.LivenessPeriod.Milliseconds()),
		CallTimeout:      2000,
		RetryInterval:    int(d.RetryInterval.Milliseconds()),
	}
}

// loadConfig reads path over the defaults. Keys missing from the file keep
// their default value. An empty path returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.UnmarshalStrict(bytes, &cfg); err != nil {
		return config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c config) turnConfig() turn.Config {
	return turn.Config{
		Namespace:        c.Namespace,
		AnswerTimeout:    time.Millisecond * time.Duration(c.AnswerTimeout),
		CollectionWindow: time.Millisecond * time.Duration(c.CollectionWindow),
		QuestionTimeout:  time.Millisecond * time.Duration(c.QuestionTimeout),
		LivenessPeriod:   time.Millisecond * time.Duration(c.LivenessPeriod),
		RetryInterval:    time.Millisecond * time.Duration(c.RetryInterval),
	}
}

func (c config) callTimeout() time.Duration {
	return time.Millisecond * time.Duration(c.CallTimeout)
}

func (c config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %dms", c.CallTimeout)
	}
	return c.turnConfig().Validate()
}
