package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/mwalimu/apps/api/echo"
	"github.com/trezcool/mwalimu/core"
	outboxsvc "github.com/trezcool/mwalimu/services/outbox"
	realtimesvc "github.com/trezcool/mwalimu/services/realtime"
)

func Test_newContainer(t *testing.T) {
	t.Setenv("ENV", "TEST")

	c := newContainer()
	err := c.Invoke(func(
		conf *core.Config,
		dbLoggerParam DBLoggerParam,
		relayLoggerParam RelayLoggerParam,
		storage StorageHandles,
		relay *outboxsvc.Relay,
		hub *realtimesvc.Hub,
		server *echoapi.Server,
	) {
		assert.Equal(t, "memory", conf.Database.Engine)
		assert.NotNil(t, dbLoggerParam.Logger)
		assert.NotNil(t, relayLoggerParam.Logger)
		assert.Nil(t, storage.SQL)
		assert.Nil(t, storage.Mongo)
		assert.NotNil(t, relay)
		assert.NotNil(t, hub)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Welcome to Mwalimu API!", rec.Body.String())

		hub.Close()
	})
	require.NoError(t, err)
}
