package lifecycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffhq/skiff/internal/reconcile"
	"github.com/skiffhq/skiff/internal/state"
)

// fakeHandler records the events the webhook produces.
type fakeHandler struct {
	events []Event
	result *reconcile.Result
	err    error
}

func (f *fakeHandler) Handle(_ context.Context, ev Event) (*reconcile.Result, error) {
	f.events = append(f.events, ev)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hooks/github", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_OpenedMapsToApply(t *testing.T) {
	t.Parallel()
	fake := &fakeHandler{result: &reconcile.Result{Environment: "pr-12", Phase: state.Applied}}
	router := NewWebhook(fake, nil).Router()

	rec := post(t, router, `{"action":"opened","pull_request":{"number":12}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []Event{{Type: PROpened, PRNumber: 12}}, fake.events)
	require.Contains(t, rec.Body.String(), `"phase":"applied"`)
}

func TestWebhook_SynchronizeMapsToUpdate(t *testing.T) {
	t.Parallel()
	fake := &fakeHandler{result: &reconcile.Result{Environment: "pr-4", Phase: state.Applied}}
	router := NewWebhook(fake, nil).Router()

	post(t, router, `{"action":"synchronize","pull_request":{"number":4}}`)
	require.Equal(t, []Event{{Type: PRUpdated, PRNumber: 4}}, fake.events)
}

func TestWebhook_ClosedMapsToDestroy(t *testing.T) {
	t.Parallel()
	fake := &fakeHandler{result: &reconcile.Result{Environment: "pr-4", Phase: state.Destroyed}}
	router := NewWebhook(fake, nil).Router()

	post(t, router, `{"action":"closed","pull_request":{"number":4}}`)
	require.Equal(t, []Event{{Type: PRClosed, PRNumber: 4}}, fake.events)
}

func TestWebhook_IgnoresUnrelatedActions(t *testing.T) {
	t.Parallel()
	fake := &fakeHandler{}
	router := NewWebhook(fake, nil).Router()

	rec := post(t, router, `{"action":"labeled","pull_request":{"number":4}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, fake.events)
	require.Contains(t, rec.Body.String(), "ignored")
}

func TestWebhook_RejectsMalformedPayload(t *testing.T) {
	t.Parallel()
	router := NewWebhook(&fakeHandler{}, nil).Router()

	rec := post(t, router, `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, router, `{"action":"opened","pull_request":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_LockContentionIsConflict(t *testing.T) {
	t.Parallel()
	fake := &fakeHandler{err: &reconcile.LockError{Environment: "pr-4"}}
	router := NewWebhook(fake, nil).Router()

	rec := post(t, router, `{"action":"opened","pull_request":{"number":4}}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebhook_Healthz(t *testing.T) {
	t.Parallel()
	router := NewWebhook(&fakeHandler{}, nil).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
