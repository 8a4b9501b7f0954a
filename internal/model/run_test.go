package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_Duration(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	finish := start.Add(90 * time.Second)

	running := Run{StartedAt: start, Status: RunStatusRunning}
	assert.Zero(t, running.Duration())
	assert.False(t, running.Succeeded())

	done := Run{
		StartedAt:  start,
		FinishedAt: &finish,
		Status:     RunStatusSucceeded,
		Artifact:   &Artifact{TrainRows: 8, TestRows: 2, IsIngested: true},
	}
	assert.Equal(t, 90*time.Second, done.Duration())
	assert.True(t, done.Succeeded())
	assert.Equal(t, 10, done.Artifact.TotalRows())
}
