package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(":8080", http.NotFoundHandler(), logger)
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
	assert.NotNil(t, srv.ErrorLog)

	srv = New(":8080", http.NotFoundHandler(), logger, WithWriteTimeout(time.Minute), WithWriteTimeout(0))
	assert.Equal(t, time.Minute, srv.WriteTimeout)
}
