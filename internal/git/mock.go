package git

import (
	"regexp"
	"time"
)

// Compile-time check that MockRepository implements Repository.
var _ Repository = (*MockRepository)(nil)

// MockRepository is a configurable mock implementation of Repository for testing.
// Each method is backed by a function field. If the function field is nil,
// the method returns sensible zero values for a clean, unborn repository.
type MockRepository struct {
	WorkTreeFunc      func() (string, error)
	GitDirFunc        func() string
	ResolveHeadFunc   func() (*ObjectID, error)
	CommitTimeFunc    func(ObjectID) (time.Time, error)
	CurrentBranchFunc func() (string, error)
	TagsPointAtFunc   func(ObjectID) ([]string, error)
	StatusFunc        func() (Status, error)
	DescribeFunc      func(*ObjectID, *regexp.Regexp) (Description, error)
	IsShallowFunc     func() (bool, error)
}

func (m *MockRepository) WorkTree() (string, error) {
	if m.WorkTreeFunc != nil {
		return m.WorkTreeFunc()
	}
	return "", ErrNoWorkTree
}

func (m *MockRepository) GitDir() string {
	if m.GitDirFunc != nil {
		return m.GitDirFunc()
	}
	return ""
}

func (m *MockRepository) ResolveHead() (*ObjectID, error) {
	if m.ResolveHeadFunc != nil {
		return m.ResolveHeadFunc()
	}
	return nil, nil
}

func (m *MockRepository) CommitTime(id ObjectID) (time.Time, error) {
	if m.CommitTimeFunc != nil {
		return m.CommitTimeFunc(id)
	}
	return time.Time{}, nil
}

func (m *MockRepository) CurrentBranch() (string, error) {
	if m.CurrentBranchFunc != nil {
		return m.CurrentBranchFunc()
	}
	return "", nil
}

func (m *MockRepository) TagsPointAt(id ObjectID) ([]string, error) {
	if m.TagsPointAtFunc != nil {
		return m.TagsPointAtFunc(id)
	}
	return []string{}, nil
}

func (m *MockRepository) Status() (Status, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc()
	}
	return Status{}, nil
}

func (m *MockRepository) Describe(head *ObjectID, pattern *regexp.Regexp) (Description, error) {
	if m.DescribeFunc != nil {
		return m.DescribeFunc(head, pattern)
	}
	if head == nil {
		return Description{Commit: NoCommit, Tag: RootTag}, nil
	}
	return Description{Commit: head.Sha, Tag: RootTag}, nil
}

func (m *MockRepository) IsShallow() (bool, error) {
	if m.IsShallowFunc != nil {
		return m.IsShallowFunc()
	}
	return false, nil
}
