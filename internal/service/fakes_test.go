package service

import (
	"context"
	"sync"

	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/model"
	"github.com/and161185/filekeeper/internal/repository"
)

type fakeMeta struct {
	mu      sync.Mutex
	entries map[string]model.MasterEntry

	createErr error
	deleteErr error

	createCalls int
	deleteCalls int
}

var _ repository.MetadataRepository = (*fakeMeta)(nil)

func newFakeMeta() *fakeMeta { return &fakeMeta{entries: map[string]model.MasterEntry{}} }

func (f *fakeMeta) CreateMasterEntry(_ context.Context, p fpath.FilePath) (model.CreateOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return 0, f.createErr
	}
	if _, ok := f.entries[p.Normalized()]; ok {
		return model.AlreadyExisted, nil
	}
	f.entries[p.Normalized()] = model.NewMasterEntry(p)
	return model.Created, nil
}

func (f *fakeMeta) GetMasterEntry(_ context.Context, p fpath.FilePath) (*model.MasterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[p.Normalized()]
	if !ok {
		return nil, errs.NotFound("master entry not found")
	}
	return &e, nil
}

func (f *fakeMeta) DeleteMasterEntry(_ context.Context, p fpath.FilePath) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.entries[p.Normalized()]; !ok {
		return errs.NotFound("master entry not found")
	}
	delete(f.entries, p.Normalized())
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]bool

	existsErr error
	createErr error

	existsCalls int
	createCalls int
}

var _ repository.ObjectStore = (*fakeObjects)(nil)

func newFakeObjects() *fakeObjects { return &fakeObjects{objects: map[string]bool{}} }

func (f *fakeObjects) Exists(_ context.Context, p fpath.FilePath) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.objects[p.Normalized()], nil
}

func (f *fakeObjects) Create(_ context.Context, p fpath.FilePath) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.objects[p.Normalized()] = true
	return nil
}
