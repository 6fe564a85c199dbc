package gcp

import "context"

// MockAPI is a func-field mock of API for adapter tests.
type MockAPI struct {
	EnableServiceFunc    func(ctx context.Context, apiName string) error
	UpsertServiceFunc    func(ctx context.Context, req ServiceRequest) (*ServiceResult, error)
	DeleteServiceFunc    func(ctx context.Context, fullName string) error
	SetInvokerPolicyFunc func(ctx context.Context, fullName string, members []string) error
	CreateSecretFunc     func(ctx context.Context, name string) error
	AddSecretVersionFunc func(ctx context.Context, name string, payload []byte) (string, error)
	DeleteSecretFunc     func(ctx context.Context, name string) error

	EnabledAPIs []string
}

func (m *MockAPI) EnableService(ctx context.Context, apiName string) error {
	m.EnabledAPIs = append(m.EnabledAPIs, apiName)
	if m.EnableServiceFunc != nil {
		return m.EnableServiceFunc(ctx, apiName)
	}
	return nil
}

func (m *MockAPI) UpsertService(ctx context.Context, req ServiceRequest) (*ServiceResult, error) {
	if m.UpsertServiceFunc != nil {
		return m.UpsertServiceFunc(ctx, req)
	}
	return &ServiceResult{
		FullName: "projects/test/locations/" + req.Region + "/services/" + req.Name,
		URI:      "https://" + req.Name + ".a.run.app",
	}, nil
}

func (m *MockAPI) DeleteService(ctx context.Context, fullName string) error {
	if m.DeleteServiceFunc != nil {
		return m.DeleteServiceFunc(ctx, fullName)
	}
	return nil
}

func (m *MockAPI) SetInvokerPolicy(ctx context.Context, fullName string, members []string) error {
	if m.SetInvokerPolicyFunc != nil {
		return m.SetInvokerPolicyFunc(ctx, fullName, members)
	}
	return nil
}

func (m *MockAPI) CreateSecret(ctx context.Context, name string) error {
	if m.CreateSecretFunc != nil {
		return m.CreateSecretFunc(ctx, name)
	}
	return nil
}

func (m *MockAPI) AddSecretVersion(ctx context.Context, name string, payload []byte) (string, error) {
	if m.AddSecretVersionFunc != nil {
		return m.AddSecretVersionFunc(ctx, name, payload)
	}
	return "projects/test/secrets/" + name + "/versions/1", nil
}

func (m *MockAPI) DeleteSecret(ctx context.Context, name string) error {
	if m.DeleteSecretFunc != nil {
		return m.DeleteSecretFunc(ctx, name)
	}
	return nil
}
