package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_Finalize_SortAndCountAndUTC(t *testing.T) {
	r := RunReport{
		Mode:       ModeAppend,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Failures: []FileFailure{
			{Path: "/v/b.mp4", ErrorCode: ErrCodeProbeFailed},
			{Path: "/v/a.mkv", ErrorCode: ErrCodeStatFailed},
		},
	}

	r.Finalize()

	require.Len(t, r.Failures, 2)
	assert.Equal(t, "/v/a.mkv", r.Failures[0].Path)
	assert.Equal(t, 2, r.Summary.Failed)
	assert.False(t, r.OK())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"started_at":"2026-02-09T02:00:00Z"`, "started_at 不是 UTC RFC3339")
}

func TestRunReport_Finalize_NilFailuresBecomeEmptyList(t *testing.T) {
	r := RunReport{}
	r.Finalize()

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"failures":[]`)
	assert.True(t, r.OK())
}
