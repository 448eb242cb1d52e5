package graph

import (
	"context"
	"sync"
	"time"

	"pairchat/internal/domain"
)

// PutWait writes v at n and blocks until the store acknowledges it or ctx
// ends.
func PutWait(ctx context.Context, n domain.Node, v domain.Value) error {
	done := make(chan error, 1)
	n.Put(v, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnceWait reads n once and blocks until the value arrives or ctx ends.
func OnceWait(ctx context.Context, n domain.Node) (domain.Value, error) {
	done := make(chan domain.Value, 1)
	n.Once(func(v domain.Value, _ string) { done <- v })
	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CollectWait subscribes to c and gathers children until no new child has
// arrived for quiet, then detaches. It is meant for one-shot listings; live
// views should keep the subscription instead.
func CollectWait(ctx context.Context, c domain.Collection, quiet time.Duration) (map[string]domain.Value, error) {
	var (
		mu   sync.Mutex
		out  = make(map[string]domain.Value)
		kick = make(chan struct{}, 1)
	)
	unsub := c.On(func(v domain.Value, key string) {
		mu.Lock()
		if v == nil {
			delete(out, key)
		} else {
			out[key] = v
		}
		mu.Unlock()
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	defer unsub()

	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-kick:
			timer.Reset(quiet)
		case <-timer.C:
			mu.Lock()
			defer mu.Unlock()
			snap := make(map[string]domain.Value, len(out))
			for k, v := range out {
				snap[k] = v
			}
			return snap, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
