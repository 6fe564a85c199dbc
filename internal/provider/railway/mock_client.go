package railway

import "context"

// MockAPI is a func-field mock of API for adapter tests.
type MockAPI struct {
	UpsertServiceFunc  func(ctx context.Context, req ServiceRequest) (*ServiceResult, error)
	DeleteServiceFunc  func(ctx context.Context, serviceID string) error
	UpsertVariableFunc func(ctx context.Context, environment, name, value string, sensitive bool) error
	DeleteVariableFunc func(ctx context.Context, environment, name string) error

	Variables map[string]string
	Sensitive map[string]bool
}

func (m *MockAPI) UpsertService(ctx context.Context, req ServiceRequest) (*ServiceResult, error) {
	if m.UpsertServiceFunc != nil {
		return m.UpsertServiceFunc(ctx, req)
	}
	return &ServiceResult{
		ServiceID:     "svc-" + req.Name,
		Domain:        req.Name + ".up.railway.app",
		ConnectionURL: connectionURL(req),
	}, nil
}

func connectionURL(req ServiceRequest) string {
	if req.Engine == "" {
		return ""
	}
	return req.Engine + "://" + req.Name + ".railway.internal"
}

func (m *MockAPI) DeleteService(ctx context.Context, serviceID string) error {
	if m.DeleteServiceFunc != nil {
		return m.DeleteServiceFunc(ctx, serviceID)
	}
	return nil
}

func (m *MockAPI) UpsertVariable(ctx context.Context, environment, name, value string, sensitive bool) error {
	if m.UpsertVariableFunc != nil {
		return m.UpsertVariableFunc(ctx, environment, name, value, sensitive)
	}
	if m.Variables == nil {
		m.Variables = make(map[string]string)
		m.Sensitive = make(map[string]bool)
	}
	m.Variables[environment+"/"+name] = value
	m.Sensitive[environment+"/"+name] = sensitive
	return nil
}

func (m *MockAPI) DeleteVariable(ctx context.Context, environment, name string) error {
	if m.DeleteVariableFunc != nil {
		return m.DeleteVariableFunc(ctx, environment, name)
	}
	delete(m.Variables, environment+"/"+name)
	return nil
}
