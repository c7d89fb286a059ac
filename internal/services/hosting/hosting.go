// Package hosting defines what the deploy flow needs from a hosting provider.
package hosting

import (
	"context"

	"github.com/google/uuid"
)

// ReadyState 는 Vercel 의 readyState 값을 그대로 씁니다. 다른 공급자도 이 값으로 변환합니다.
type ReadyState string

const (
	StateQueued       ReadyState = "QUEUED"
	StateInitializing ReadyState = "INITIALIZING"
	StateBuilding     ReadyState = "BUILDING"
	StateReady        ReadyState = "READY"
	StateError        ReadyState = "ERROR"
	StateCanceled     ReadyState = "CANCELED"
)

func (s ReadyState) Failed() bool {
	return s == StateError || s == StateCanceled
}

// Credentials are the caller's provider token. Kubernetes ignores them.
type Credentials struct {
	Token  string
	TeamID string
}

type Request struct {
	StoreID       uuid.UUID
	StoreName     string
	Subdomain     string
	Host          string // <subdomain>.<root domain>
	RepoID        int64
	RepoFullName  string
	DefaultBranch string
	Env           map[string]string
	Credentials   Credentials
}

type Result struct {
	ProjectID    string
	DeploymentID string
	URL          string
}

type Status struct {
	State   ReadyState
	URL     string
	Message string
}

type Provider interface {
	Deploy(ctx context.Context, req Request) (*Result, error)
	Status(ctx context.Context, deploymentID string, creds Credentials) (*Status, error)
}
