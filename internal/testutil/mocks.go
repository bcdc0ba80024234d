package testutil

import (
	"context"
	"io"

	"github.com/joel-wright/swiftbatch/swiftapi"
)

// MockConnection is a func-field mock of the Connection capability. Fields
// left nil succeed with zero values.
type MockConnection struct {
	PutObjectFunc       func(ctx context.Context, container, object string, body io.Reader, opts *swiftapi.PutObjectOptions) (*swiftapi.PutResult, error)
	GetObjectFunc       func(ctx context.Context, container, object string, opts *swiftapi.GetObjectOptions) (io.ReadCloser, *swiftapi.ObjectInfo, error)
	HeadObjectFunc      func(ctx context.Context, container, object string) (*swiftapi.ObjectInfo, error)
	PostObjectFunc      func(ctx context.Context, container, object string, headers map[string]string) error
	DeleteObjectFunc    func(ctx context.Context, container, object string) error
	PutContainerFunc    func(ctx context.Context, container string, headers map[string]string) error
	HeadContainerFunc   func(ctx context.Context, container string) (*swiftapi.ContainerInfo, error)
	PostContainerFunc   func(ctx context.Context, container string, headers map[string]string) error
	DeleteContainerFunc func(ctx context.Context, container string) error
	GetContainerFunc    func(ctx context.Context, container string, opts *swiftapi.ListOptions) ([]swiftapi.ObjectRecord, error)
	HeadAccountFunc     func(ctx context.Context) (*swiftapi.AccountInfo, error)
	PostAccountFunc     func(ctx context.Context, headers map[string]string) error
	GetAccountFunc      func(ctx context.Context, opts *swiftapi.ListOptions) ([]swiftapi.ContainerRecord, error)
	CapabilitiesFunc    func(ctx context.Context, endpoint string) (map[string]any, error)
	CloseFunc           func() error
}

// Factory returns a ConnectionFactory handing out this mock.
func (m *MockConnection) Factory() swiftapi.ConnectionFactory {
	return func(ctx context.Context) (swiftapi.Connection, error) {
		return m, nil
	}
}

func (m *MockConnection) PutObject(ctx context.Context, container, object string, body io.Reader, opts *swiftapi.PutObjectOptions) (*swiftapi.PutResult, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, container, object, body, opts)
	}
	return &swiftapi.PutResult{}, nil
}

func (m *MockConnection) GetObject(ctx context.Context, container, object string, opts *swiftapi.GetObjectOptions) (io.ReadCloser, *swiftapi.ObjectInfo, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, container, object, opts)
	}
	return io.NopCloser(nil), &swiftapi.ObjectInfo{}, nil
}

func (m *MockConnection) HeadObject(ctx context.Context, container, object string) (*swiftapi.ObjectInfo, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, container, object)
	}
	return &swiftapi.ObjectInfo{}, nil
}

func (m *MockConnection) PostObject(ctx context.Context, container, object string, headers map[string]string) error {
	if m.PostObjectFunc != nil {
		return m.PostObjectFunc(ctx, container, object, headers)
	}
	return nil
}

func (m *MockConnection) DeleteObject(ctx context.Context, container, object string) error {
	if m.DeleteObjectFunc != nil {
		return m.DeleteObjectFunc(ctx, container, object)
	}
	return nil
}

func (m *MockConnection) PutContainer(ctx context.Context, container string, headers map[string]string) error {
	if m.PutContainerFunc != nil {
		return m.PutContainerFunc(ctx, container, headers)
	}
	return nil
}

func (m *MockConnection) HeadContainer(ctx context.Context, container string) (*swiftapi.ContainerInfo, error) {
	if m.HeadContainerFunc != nil {
		return m.HeadContainerFunc(ctx, container)
	}
	return &swiftapi.ContainerInfo{}, nil
}

func (m *MockConnection) PostContainer(ctx context.Context, container string, headers map[string]string) error {
	if m.PostContainerFunc != nil {
		return m.PostContainerFunc(ctx, container, headers)
	}
	return nil
}

func (m *MockConnection) DeleteContainer(ctx context.Context, container string) error {
	if m.DeleteContainerFunc != nil {
		return m.DeleteContainerFunc(ctx, container)
	}
	return nil
}

func (m *MockConnection) GetContainer(ctx context.Context, container string, opts *swiftapi.ListOptions) ([]swiftapi.ObjectRecord, error) {
	if m.GetContainerFunc != nil {
		return m.GetContainerFunc(ctx, container, opts)
	}
	return nil, nil
}

func (m *MockConnection) HeadAccount(ctx context.Context) (*swiftapi.AccountInfo, error) {
	if m.HeadAccountFunc != nil {
		return m.HeadAccountFunc(ctx)
	}
	return &swiftapi.AccountInfo{}, nil
}

func (m *MockConnection) PostAccount(ctx context.Context, headers map[string]string) error {
	if m.PostAccountFunc != nil {
		return m.PostAccountFunc(ctx, headers)
	}
	return nil
}

func (m *MockConnection) GetAccount(ctx context.Context, opts *swiftapi.ListOptions) ([]swiftapi.ContainerRecord, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, opts)
	}
	return nil, nil
}

func (m *MockConnection) Capabilities(ctx context.Context, endpoint string) (map[string]any, error) {
	if m.CapabilitiesFunc != nil {
		return m.CapabilitiesFunc(ctx, endpoint)
	}
	return map[string]any{}, nil
}

func (m *MockConnection) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ swiftapi.Connection = (*MockConnection)(nil)
