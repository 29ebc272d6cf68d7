package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Старт планировщика регистрирует cron-задачу без ошибки и корректно
// останавливается.
func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(nil, nil, 24*time.Hour, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	s.Stop()
}
