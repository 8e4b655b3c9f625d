package job_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asagiri-dev/choukan/internal/job"
)

type named string

func (n named) Name() string              { return string(n) }
func (n named) Run(context.Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := job.NewRegistry(named("tech_feed"), named("github_trending"))

	jb, ok := r.Get("tech_feed")
	require.True(t, ok)
	assert.Equal(t, "tech_feed", jb.Name())

	_, ok = r.Get("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"github_trending", "tech_feed"}, r.Names())
}
