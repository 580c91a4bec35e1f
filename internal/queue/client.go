package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/akarpov/docsync/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueUploadSync triggers an out-of-schedule pass of the upload worker.
func (c *Client) EnqueueUploadSync() error {
	return c.enqueue(TypeUploadSync, asynq.MaxRetry(2), asynq.Timeout(10*time.Minute))
}

// EnqueueIndexingPoll triggers an out-of-schedule indexing status poll.
func (c *Client) EnqueueIndexingPoll() error {
	return c.enqueue(TypeIndexingPoll, asynq.MaxRetry(2), asynq.Timeout(5*time.Minute))
}

// EnqueueDeleteSweep triggers an out-of-schedule pass of the delete worker.
func (c *Client) EnqueueDeleteSweep() error {
	return c.enqueue(TypeDeleteSweep, asynq.MaxRetry(2), asynq.Timeout(10*time.Minute))
}

// EnqueueStorageSweep triggers the bucket/catalog anti-entropy sweep.
func (c *Client) EnqueueStorageSweep() error {
	return c.enqueue(TypeStorageSweep, asynq.MaxRetry(1), asynq.Timeout(30*time.Minute))
}

func (c *Client) enqueue(taskType string, opts ...asynq.Option) error {
	opts = append(opts, asynq.Unique(time.Hour))
	_, err := c.client.Enqueue(asynq.NewTask(taskType, nil), opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
