package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lyzr/cookbook/common/clients"
	"github.com/lyzr/cookbook/common/uploader"
)

type commandContext struct {
	server  string
	user    string
	timeout time.Duration
}

func newCommandContext(server, user string, timeout time.Duration) *commandContext {
	return &commandContext{
		server:  server,
		user:    user,
		timeout: timeout,
	}
}

func (c *commandContext) uploader() *uploader.Client {
	return uploader.New(strings.TrimSpace(c.server),
		uploader.WithHTTPClient(&http.Client{Timeout: c.timeout}),
	)
}

// requestContext attaches the configured user so it is sent as X-User-ID
func (c *commandContext) requestContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if user := strings.TrimSpace(c.user); user != "" {
		ctx = clients.WithUserID(ctx, user)
	}
	return ctx
}
