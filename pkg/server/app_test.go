package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingLoop struct{ started chan struct{} }

func (b blockingLoop) Loop(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

type failingLoop struct{}

func (failingLoop) Loop(context.Context) error { return errors.New("boom") }

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestApp_StopsOnCancel(t *testing.T) {
	loop := blockingLoop{started: make(chan struct{})}
	c := &closer{}
	app := New(loop, nil, time.Second, nil, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.run(ctx) }()

	<-loop.started
	cancel()
	assert.NoError(t, <-done)
	assert.True(t, c.closed)
}

func TestApp_SurfacesLoopError(t *testing.T) {
	c := &closer{}
	err := New(failingLoop{}, nil, time.Second, nil, c).run(context.Background())
	assert.EqualError(t, err, "boom")
	assert.True(t, c.closed)
}
