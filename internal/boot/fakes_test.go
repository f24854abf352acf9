package boot

import (
	"context"
	"sync"
	"sync/atomic"
)

type fakeMetadata struct {
	id    string
	calls atomic.Int32
}

func (f *fakeMetadata) CurrentInstanceID(context.Context) string {
	f.calls.Add(1)
	return f.id
}

type fakeDescriber struct {
	record  *InstanceRecord
	err     error
	release chan struct{}

	mu    sync.Mutex
	calls int
	ids   []string
}

func (f *fakeDescriber) DescribeInstance(_ context.Context, id string) (*InstanceRecord, error) {
	f.mu.Lock()
	f.calls++
	f.ids = append(f.ids, id)
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	return f.record, f.err
}

func (f *fakeDescriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeParameterStore struct {
	pages []ParameterPage
	err   error

	queries []PathQuery
}

func (f *fakeParameterStore) ParametersByPath(_ context.Context, query PathQuery) (ParameterPage, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return ParameterPage{}, f.err
	}
	idx := len(f.queries) - 1
	if idx >= len(f.pages) {
		return ParameterPage{}, nil
	}
	return f.pages[idx], nil
}

func recordWithTags(tags ...Tag) *InstanceRecord {
	return &InstanceRecord{InstanceID: "i-0abc", Tags: tags}
}
