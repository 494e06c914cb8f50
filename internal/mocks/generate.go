// Package mocks provides gomock implementations of the auth ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	api := mocks.NewMockAPIClient(ctrl)
//	api.EXPECT().WhoAmI(gomock.Any()).Return(ports.WhoAmIResult{}, nil)
package mocks

// Generate mocks for APIClient and KeyValueStore from internal/ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/upjv/prospection-ui/internal/ports APIClient,KeyValueStore
