package server

import (
	"context"
	"strconv"

	"github.com/toastate/toastpipe/internal/server"
	"github.com/toastate/toastpipe/internal/tasks"
	"github.com/toastate/toastpipe/pkg/builder"
)

type Server interface {
	Start(ctx context.Context, withBuilder bool) error
}

type devServer struct {
	srv *server.Server
	b   *builder.Builder
}

// NewServer serves the destination root of b's configuration on port,
// falling back to serve.port when port is not positive.
func NewServer(b *builder.Builder, port int) Server {
	cfg := b.Config()
	if port <= 0 {
		port = cfg.Serve.Port
	}
	return &devServer{
		srv: server.NewServer(b.Runner(), b.Metrics(), strconv.Itoa(port), cfg.Serve.Redirect404),
		b:   b,
	}
}

func (d *devServer) Start(ctx context.Context, withBuilder bool) error {
	bindings, err := tasks.WatchBindings(d.b.Config())
	if err != nil {
		return err
	}
	return d.srv.Start(ctx, withBuilder, bindings)
}
