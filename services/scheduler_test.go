package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartSchedulerRegistersJobs(t *testing.T) {
	s := newTestStack(t)

	sched, err := StartScheduler(t.Context(), s.missions, nil)
	require.NoError(t, err)
	require.Len(t, sched.Jobs(), 1)
	require.NoError(t, sched.Shutdown())

	exporter := NewStatementExporter(s.db, s.ledger, &memoryStore{})
	sched, err = StartScheduler(t.Context(), s.missions, exporter)
	require.NoError(t, err)
	require.Len(t, sched.Jobs(), 2)
	require.NoError(t, sched.Shutdown())
}
