// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"

	"github.com/taibuivan/unpuff/internal/platform/metrics"
)

// Repository is the server-side storage of profiles, one per account.
type Repository interface {
	FindByAccountID(ctx context.Context, accountID string) (*Profile, error)
	Upsert(ctx context.Context, accountID string, p Profile) error
	Delete(ctx context.Context, accountID string) error
}

// Service implements the remote profile table use cases.
type Service struct {
	repository Repository
	recorder   metrics.Recorder
}

// NewService constructs a [Service].
func NewService(repository Repository, recorder metrics.Recorder) *Service {
	return &Service{repository: repository, recorder: recorder}
}

// Get returns the profile of accountID, or NOT_FOUND.
func (service *Service) Get(ctx context.Context, accountID string) (*Profile, error) {
	return service.repository.FindByAccountID(ctx, accountID)
}

// Save validates p and stores it for accountID.
func (service *Service) Save(ctx context.Context, accountID string, p Profile) (*Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := service.repository.Upsert(ctx, accountID, p); err != nil {
		return nil, err
	}
	service.recorder.RecordProfileWrite("save")

	saved := p.Clone()
	return &saved, nil
}

// Delete removes the profile of accountID.
func (service *Service) Delete(ctx context.Context, accountID string) error {
	if err := service.repository.Delete(ctx, accountID); err != nil {
		return err
	}
	service.recorder.RecordProfileWrite("delete")
	return nil
}
