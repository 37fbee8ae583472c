package turn

import (
	"fmt"
	"time"
)

// DefaultNamespace prefixes the names quiz peers register in the directory.
const DefaultNamespace = "intuition."

// Config holds the timing of the protocol.
type Config struct {
	Namespace string
	// AnswerTimeout bounds the wait of a passive peer for the operator's answer.
	AnswerTimeout time.Duration
	// CollectionWindow is how long the active peer waits before polling answers.
	// It must be longer than AnswerTimeout.
	CollectionWindow time.Duration
	// QuestionTimeout bounds the wait for the active peer's question. Zero waits forever.
	QuestionTimeout time.Duration
	LivenessPeriod  time.Duration
	// RetryInterval is the pause before a failed cycle is attempted again.
	RetryInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Namespace:        DefaultNamespace,
		AnswerTimeout:    3 * time.Second,
		CollectionWindow: 10 * time.Second,
		QuestionTimeout:  20 * time.Second,
		LivenessPeriod:   20 * time.Second,
		RetryInterval:    2 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.AnswerTimeout <= 0 {
		return fmt.Errorf("answer timeout must be positive, got %s", c.AnswerTimeout)
	}
	if c.CollectionWindow <= c.AnswerTimeout {
		return fmt.Errorf("collection window %s must be longer than answer timeout %s", c.CollectionWindow, c.AnswerTimeout)
	}
	if c.QuestionTimeout < 0 {
		return fmt.Errorf("question timeout cannot be negative, got %s", c.QuestionTimeout)
	}
	if c.LivenessPeriod <= 0 {
		return fmt.Errorf("liveness period must be positive, got %s", c.LivenessPeriod)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive, got %s", c.RetryInterval)
	}
	return nil
}
