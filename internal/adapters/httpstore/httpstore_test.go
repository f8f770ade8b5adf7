package httpstore_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/rig/internal/adapters/cas"
	"go.trai.ch/rig/internal/adapters/httpstore"
	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports/mocks"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := cas.NewStore(t.TempDir())
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()

	srv := httptest.NewServer(httpstore.NewServer(store, log))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	srv := newServer(t)
	client := httpstore.NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	require.NoError(t, client.Put(ctx, "v1/rust-abc.0", strings.NewReader("archive")))

	rc, err := client.Get(ctx, "v1/rust-abc.0")
	require.NoError(t, err)
	require.NotNil(t, rc)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
}

func TestClient_Miss(t *testing.T) {
	srv := newServer(t)
	client := httpstore.NewClient(srv.URL, srv.Client())

	rc, err := client.Get(context.Background(), "v1/absent")
	require.NoError(t, err)
	assert.Nil(t, rc)
}

func TestServer_Healthz(t *testing.T) {
	srv := newServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBlobStore(ctrl)
	log := mocks.NewMockLogger(ctrl)

	store.EXPECT().Put(gomock.Any(), "k", gomock.Any()).Return(errors.New("disk full"))
	store.EXPECT().Get(gomock.Any(), "k").Return(nil, errors.New("io error"))
	log.EXPECT().Error(gomock.Any()).Times(2)

	srv := httptest.NewServer(httpstore.NewServer(store, log))
	defer srv.Close()
	client := httpstore.NewClient(srv.URL, srv.Client())

	err := client.Put(context.Background(), "k", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrStoreWriteFailed)

	_, err = client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrStoreReadFailed)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := httpstore.NewClient(url, nil)
	_, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrStoreReadFailed)
}
