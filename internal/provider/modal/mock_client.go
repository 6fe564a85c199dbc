package modal

import "context"

// MockAPI is a func-field mock of API for adapter tests.
type MockAPI struct {
	DeployAppFunc    func(ctx context.Context, req AppRequest) (*AppResult, error)
	StopAppFunc      func(ctx context.Context, appID string) error
	PutSecretFunc    func(ctx context.Context, name string, entries map[string]string) error
	DeleteSecretFunc func(ctx context.Context, name string) error

	Secrets map[string]map[string]string
}

func (m *MockAPI) DeployApp(ctx context.Context, req AppRequest) (*AppResult, error) {
	if m.DeployAppFunc != nil {
		return m.DeployAppFunc(ctx, req)
	}
	return &AppResult{
		AppID: "ap-" + req.Name,
		URL:   "https://" + req.Name + ".modal.run",
	}, nil
}

func (m *MockAPI) StopApp(ctx context.Context, appID string) error {
	if m.StopAppFunc != nil {
		return m.StopAppFunc(ctx, appID)
	}
	return nil
}

func (m *MockAPI) PutSecret(ctx context.Context, name string, entries map[string]string) error {
	if m.PutSecretFunc != nil {
		return m.PutSecretFunc(ctx, name, entries)
	}
	if m.Secrets == nil {
		m.Secrets = make(map[string]map[string]string)
	}
	m.Secrets[name] = entries
	return nil
}

func (m *MockAPI) DeleteSecret(ctx context.Context, name string) error {
	if m.DeleteSecretFunc != nil {
		return m.DeleteSecretFunc(ctx, name)
	}
	delete(m.Secrets, name)
	return nil
}
