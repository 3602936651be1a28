package media

import (
	"context"
	"fmt"
)

// Pool caps the number of concurrently live decode handles. Opening blocks
// until a slot frees up or the context is cancelled; closing the returned
// source releases its slot.
type Pool struct {
	opener Opener
	slots  chan struct{}
}

func NewPool(opener Opener, maxHandles int) *Pool {
	if maxHandles < 1 {
		maxHandles = 1
	}
	return &Pool{
		opener: opener,
		slots:  make(chan struct{}, maxHandles),
	}
}

func (p *Pool) Probe(ctx context.Context, path string) (Info, error) {
	return p.opener.Probe(ctx, path)
}

func (p *Pool) KeyframeBefore(ctx context.Context, path string, sec float64) (float64, error) {
	return p.opener.KeyframeBefore(ctx, path, sec)
}

func (p *Pool) Open(ctx context.Context, path string) (Source, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for decode handle slot: %w", ctx.Err())
	}

	src, err := p.opener.Open(ctx, path)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return &pooledSource{Source: src, pool: p}, nil
}

type pooledSource struct {
	Source
	pool   *Pool
	closed bool
}

func (s *pooledSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.Source.Close()
	<-s.pool.slots
	return err
}
