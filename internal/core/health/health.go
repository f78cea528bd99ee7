package health

import "context"

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Prober reports whether the vector store answers.
type Prober interface {
	IsAvailable(ctx context.Context) bool
}

// CredentialChecker reports whether the completion provider has a usable credential.
type CredentialChecker interface {
	Configured() bool
}

type Report struct {
	Status                       string `json:"status"`
	VectorStoreConnected         bool   `json:"vector_store_connected"`
	CompletionProviderConfigured bool   `json:"completion_provider_configured"`
}

func (r Report) Healthy() bool { return r.Status == StatusHealthy }

type Service struct {
	store      Prober
	completion CredentialChecker
}

// NewService builds the health signal. A nil store counts as disconnected.
func NewService(store Prober, completion CredentialChecker) *Service {
	return &Service{store: store, completion: completion}
}

func (s *Service) Check(ctx context.Context) Report {
	r := Report{
		VectorStoreConnected:         s.store != nil && s.store.IsAvailable(ctx),
		CompletionProviderConfigured: s.completion != nil && s.completion.Configured(),
	}
	r.Status = StatusUnhealthy
	if r.VectorStoreConnected && r.CompletionProviderConfigured {
		r.Status = StatusHealthy
	}
	return r
}
