package boot

import (
	"context"
	"strings"
	"sync"
)

// MetadataSource reports the identifier of the instance the process runs on.
// Implementations return an empty string when no metadata service is reachable.
type MetadataSource interface {
	CurrentInstanceID(ctx context.Context) string
}

// IdentityProbe resolves the instance identifier once and caches it for the
// lifetime of the probe. A process is expected to hold a single probe.
type IdentityProbe struct {
	source MetadataSource

	once sync.Once
	id   string
}

// NewIdentityProbe creates a probe backed by the given metadata source.
func NewIdentityProbe(source MetadataSource) *IdentityProbe {
	return &IdentityProbe{source: source}
}

// InstanceID returns the cached instance identifier, looking it up on first use.
// Only the first caller's context is used for the lookup.
func (p *IdentityProbe) InstanceID(ctx context.Context) string {
	p.once.Do(func() {
		if p.source == nil {
			return
		}
		p.id = strings.TrimSpace(p.source.CurrentInstanceID(ctx))
	})
	return p.id
}

// IsManagedInstance reports whether an instance identifier could be obtained.
func (p *IdentityProbe) IsManagedInstance(ctx context.Context) bool {
	return p.InstanceID(ctx) != ""
}
