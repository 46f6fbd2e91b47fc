package domain

import "context"

// SeedResult reports record counts after POST /api/init.
type SeedResult struct {
	Products           int  `json:"products"`
	Users              int  `json:"users"`
	Orders             int  `json:"orders"`
	AlreadyInitialized bool `json:"-"`
}

type SeedUseCase interface {
	Initialize(ctx context.Context) (*SeedResult, error)
}
