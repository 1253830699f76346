package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const solveChannelPrefix = "solve:"

// RedisBroker distributes solve events across API replicas via pub/sub.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: rdb}, nil
}

func (b *RedisBroker) Publish(solveID string, evt SolveEvent) {
	evt.SolveID = solveID
	if evt.TS == "" {
		evt.TS = time.Now().UTC().Format(time.RFC3339Nano)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(context.Background(), solveChannelPrefix+solveID, payload).Err(); err != nil {
		logrus.WithError(err).Warn("redis publish failed")
	}
}

func (b *RedisBroker) Subscribe(solveID string) (chan SolveEvent, func()) {
	sub := b.rdb.Subscribe(context.Background(), solveChannelPrefix+solveID)
	ch := make(chan SolveEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(ch)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var evt SolveEvent
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					continue
				}
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch, func() {
		close(done)
		_ = sub.Close()
	}
}
