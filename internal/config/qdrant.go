package config

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

func NewQdrantClient(cfg *Config) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %v", err)
	}
	return client, nil
}
