package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanflow/internal/clients"
	"loanflow/internal/domain"
	pkgactivity "loanflow/pkg/activity"
	"loanflow/pkg/audit"
)

func newTestActivities(notifyURL, updateURL string) *Activities {
	base := pkgactivity.NewBaseActivities(audit.NewNoOpEmitter())
	return NewActivities(base,
		clients.NewNotificationClient(notifyURL, "s3cret", 2*time.Second),
		clients.NewPersistenceClient(updateURL, "s3cret", 2*time.Second))
}

func TestNotifyStatus(t *testing.T) {
	t.Run("delivered push succeeds", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		a := newTestActivities(srv.URL, "")
		err := a.NotifyStatus(context.Background(), domain.StatusUpdate{
			LoanID: "loan-1",
			UserID: "user-1",
			Status: domain.StatusApproved,
		})

		assert.NoError(t, err)
	})

	t.Run("gateway rejection surfaces the error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"detail":"bad password"}`))
		}))
		defer srv.Close()

		a := newTestActivities(srv.URL, "")
		err := a.NotifyStatus(context.Background(), domain.StatusUpdate{LoanID: "loan-1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad password")
	})
}

func TestPersistStatus(t *testing.T) {
	t.Run("accepted update succeeds", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		a := newTestActivities("", srv.URL)
		err := a.PersistStatus(context.Background(), domain.StatusUpdate{
			LoanID: "loan-1",
			Status: domain.StatusDenied,
			Finish: true,
		})

		assert.NoError(t, err)
	})

	t.Run("store failure surfaces the error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		a := newTestActivities("", srv.URL)
		err := a.PersistStatus(context.Background(), domain.StatusUpdate{LoanID: "loan-1"})

		require.ErrorIs(t, err, clients.ErrTransport)
	})
}
