package boot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

const tagsFlightKey = "instance-tags"

// Tag is a key/value label attached to an instance.
type Tag struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// InstanceRecord is the part of an instance description the tag store needs.
type InstanceRecord struct {
	InstanceID string
	Tags       []Tag
}

// InstanceDescriber looks up a single instance by identifier. A nil record
// with a nil error means the instance was not found.
type InstanceDescriber interface {
	DescribeInstance(ctx context.Context, instanceID string) (*InstanceRecord, error)
}

// Identity exposes the resolved instance identifier.
type Identity interface {
	InstanceID(ctx context.Context) string
	IsManagedInstance(ctx context.Context) bool
}

// TagStore fetches the tags of the current instance on first use and caches
// them for its own lifetime, including an empty result.
type TagStore struct {
	identity  Identity
	describer InstanceDescriber

	group singleflight.Group

	mu     sync.RWMutex
	loaded bool
	tags   []Tag
}

// NewTagStore creates a tag store for the instance reported by identity.
func NewTagStore(identity Identity, describer InstanceDescriber) *TagStore {
	return &TagStore{
		identity:  identity,
		describer: describer,
	}
}

// Tags returns every tag attached to the current instance. Concurrent callers
// share a single describe call; a failed call is not cached.
func (s *TagStore) Tags(ctx context.Context) ([]Tag, error) {
	if tags, ok := s.cached(); ok {
		return cloneTags(tags), nil
	}

	v, err, _ := s.group.Do(tagsFlightKey, func() (any, error) {
		if tags, ok := s.cached(); ok {
			return tags, nil
		}

		tags, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.tags = tags
		s.loaded = true
		s.mu.Unlock()

		return tags, nil
	})
	if err != nil {
		return nil, err
	}

	return cloneTags(v.([]Tag)), nil
}

// Tag returns the first tag whose key matches case-insensitively.
func (s *TagStore) Tag(ctx context.Context, key string) (Tag, bool, error) {
	tags, err := s.Tags(ctx)
	if err != nil {
		return Tag{}, false, err
	}

	for _, tag := range tags {
		if strings.EqualFold(tag.Key, key) {
			return tag, true, nil
		}
	}
	return Tag{}, false, nil
}

// TagValue returns the value of the first tag matching key, or "" when absent.
func (s *TagStore) TagValue(ctx context.Context, key string) (string, error) {
	tag, ok, err := s.Tag(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return tag.Value, nil
}

// HasTag reports whether a tag exists whose key and value both match
// case-insensitively.
func (s *TagStore) HasTag(ctx context.Context, key, value string) (bool, error) {
	tags, err := s.Tags(ctx)
	if err != nil {
		return false, err
	}

	for _, tag := range tags {
		if strings.EqualFold(tag.Key, key) && strings.EqualFold(tag.Value, value) {
			return true, nil
		}
	}
	return false, nil
}

func (s *TagStore) cached() ([]Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tags, s.loaded
}

func (s *TagStore) fetch(ctx context.Context) ([]Tag, error) {
	id := s.identity.InstanceID(ctx)
	if id == "" || s.describer == nil {
		return []Tag{}, nil
	}

	record, err := s.describer.DescribeInstance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("describe instance %s: %w", id, err)
	}
	if record == nil || len(record.Tags) == 0 {
		return []Tag{}, nil
	}

	return cloneTags(record.Tags), nil
}

func cloneTags(src []Tag) []Tag {
	out := make([]Tag, len(src))
	copy(out, src)
	return out
}
