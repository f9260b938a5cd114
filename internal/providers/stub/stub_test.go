package stub

import (
	"context"
	"testing"

	"github.com/reelcast/autopilot/internal/providers"
	"github.com/reelcast/autopilot/internal/providers/uploadpost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoProviderCompletesAfterChecks(t *testing.T) {
	ctx := context.Background()
	p := NewVideoProvider("kie", 2, 0)

	id, err := p.CreateTask(ctx, providers.CreateTaskRequest{Prompt: "x"})
	require.NoError(t, err)

	d, err := p.GetTaskStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, providers.StateGenerating, d.State)

	d, err = p.GetTaskStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, providers.StateCompleted, d.State)

	u, err := p.ResultURL(d)
	require.NoError(t, err)
	assert.Contains(t, u, id)
}

func TestVideoProviderUnknownTask(t *testing.T) {
	_, err := NewVideoProvider("poyo", 1, 0).GetTaskStatus(context.Background(), "nope")
	assert.True(t, providers.IsNotFound(err))
}

func TestTextAndPublisher(t *testing.T) {
	ctx := context.Background()
	c, err := TextGenerator{}.Complete(ctx, "", "x")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Content)

	res, err := Publisher{}.Publish(ctx, uploadpost.PostRequest{})
	require.NoError(t, err)
	assert.False(t, res.Scheduled)
}
