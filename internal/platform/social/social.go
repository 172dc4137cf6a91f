package social

import (
	"context"
	"fmt"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

// PublishRequest is the platform-agnostic payload handed to a Publisher.
type PublishRequest struct {
	Body     string
	MediaURL string
}

type PublishResult struct {
	PostID string
	URL    string
}

// Publisher posts one piece of content to one platform. Implementations
// are stateless; credentials arrive per call.
type Publisher interface {
	Platform() types.Platform
	Publish(ctx context.Context, accessToken string, req PublishRequest) (*PublishResult, error)
}

// Registry resolves the publisher for a platform.
type Registry struct {
	publishers map[types.Platform]Publisher
}

func NewRegistry(log *logger.Logger) *Registry {
	r := &Registry{publishers: map[types.Platform]Publisher{}}
	r.Register(NewTwitterPublisher(log))
	r.Register(NewLinkedInPublisher(log))
	return r
}

func (r *Registry) Register(p Publisher) {
	r.publishers[p.Platform()] = p
}

func (r *Registry) For(platform types.Platform) (Publisher, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("no publisher registered for platform %q", platform)
	}
	return p, nil
}
