package reader

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-observatory/internal/platform/config"
)

// Client owns the MTProto session and the interactive login flow.
type Client struct {
	cfg    *config.Config
	logger *zerolog.Logger
	stdin  *bufio.Reader
}

func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		stdin:  bufio.NewReader(os.Stdin),
	}
}

// Run connects, authenticates if the session is new, and calls fn with a ready API.
// The connection is closed when fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context, api API) error) error {
	client := telegram.NewClient(c.cfg.TGAPIID, c.cfg.TGAPIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: c.cfg.TGSessionPath,
		},
	})

	err := client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, c.authFlow()); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}

		c.logger.Info().Msg("Successfully authenticated as user")

		return fn(ctx, tg.NewClient(client))
	})
	if err != nil {
		return fmt.Errorf("telegram client: %w", err)
	}

	return nil
}
