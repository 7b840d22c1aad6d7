package recordapi

import (
	"context"

	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// Unconfigured stands in for the client when no base or token is set.
// Every call fails with ErrRemoteNotConfigured.
type Unconfigured struct{}

func (Unconfigured) ListRecords(context.Context, integration.ListRecordsRequest) (*integration.RecordPage, error) {
	return nil, integration.ErrRemoteNotConfigured
}

func (Unconfigured) CreateRecord(context.Context, string, map[string]any) (*integration.RemoteRecord, error) {
	return nil, integration.ErrRemoteNotConfigured
}

func (Unconfigured) UpdateRecord(context.Context, string, string, map[string]any) (*integration.RemoteRecord, error) {
	return nil, integration.ErrRemoteNotConfigured
}

// NewRecordStore returns a client when the configuration is complete and
// Unconfigured otherwise.
func NewRecordStore(cfg Config, logger *zap.Logger, opts ...Option) (integration.RecordStore, error) {
	if cfg.BaseID == "" || cfg.APIToken == "" {
		return Unconfigured{}, nil
	}
	return NewClient(cfg, logger, opts...)
}
