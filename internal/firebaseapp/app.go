// Package firebaseapp initialises the Firebase app that hosts the remote
// document store.
package firebaseapp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type Config struct {
	ProjectID       string
	CredentialsFile string
}

type Client struct {
	Firestore *firestore.Client
	logger    *zap.Logger
}

// NewClient connects to Firestore through the Firebase app. Without a
// credentials file the default credential chain is used, which also covers
// FIRESTORE_EMULATOR_HOST.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		logger.Warn("No Firebase credentials file provided, using default credentials")
	}

	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	return &Client{Firestore: fs, logger: logger}, nil
}

func (c *Client) Close() error {
	if err := c.Firestore.Close(); err != nil {
		c.logger.Error("Failed to close firestore client", zap.Error(err))
		return err
	}
	return nil
}
