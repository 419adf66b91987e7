package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeQueue is an in-memory list store with BLPop semantics close enough
// for the worker loops.
type fakeQueue struct {
	mu     sync.Mutex
	lists  map[string][]string
	pushes int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{lists: map[string][]string{}}
}

func (q *fakeQueue) push(t *testing.T, key string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	q.mu.Lock()
	q.lists[key] = append(q.lists[key], string(data))
	q.mu.Unlock()
}

func (q *fakeQueue) pushRaw(key, raw string) {
	q.mu.Lock()
	q.lists[key] = append(q.lists[key], raw)
	q.mu.Unlock()
}

func (q *fakeQueue) len(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lists[key])
}

func (q *fakeQueue) pop(key string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l := q.lists[key]
	if len(l) == 0 {
		return "", false
	}
	q.lists[key] = l[1:]
	return l[0], true
}

func (q *fakeQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	deadline := time.Now().Add(timeout)
	for {
		for _, k := range keys {
			if v, ok := q.pop(k); ok {
				return redis.NewStringSliceResult([]string{k, v}, nil)
			}
		}
		if ctx.Err() != nil {
			return redis.NewStringSliceResult(nil, ctx.Err())
		}
		if time.Now().After(deadline) {
			return redis.NewStringSliceResult(nil, redis.Nil)
		}
		time.Sleep(time.Millisecond)
	}
}

func (q *fakeQueue) LPop(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := q.pop(key); ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (q *fakeQueue) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushes++
	for _, v := range values {
		switch x := v.(type) {
		case []byte:
			q.lists[key] = append(q.lists[key], string(x))
		case string:
			q.lists[key] = append(q.lists[key], x)
		}
	}
	return redis.NewIntResult(int64(len(q.lists[key])), nil)
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// runWorker starts fn in a goroutine and returns a stop func that cancels
// and waits for it to return.
func runWorker(fn func(ctx context.Context)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
