package main

import (
	"bytes"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var _ asynq.Logger = asynqLogger{}

func TestAsynqLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := asynqLogger{log: zerolog.New(&buf)}
	l.Warn("queue ", "mail", " paused")
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"message":"queue mail paused"`)
}
