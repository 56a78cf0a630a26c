package router_test

import (
	"testing"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/router"
	"github.com/stretchr/testify/assert"
)

func handle(s string) *string {
	return &s
}

func TestBuild(t *testing.T) {
	edges := []*models.Edge{
		{ID: "e1", Source: "trigger", Target: "cond"},
		{ID: "e2", Source: "cond", Target: "yes", SourceHandle: handle("true")},
		{ID: "e3", Source: "cond", Target: "no", SourceHandle: handle("false")},
		{ID: "e4", Source: "yes", Target: "random"},
		{ID: "e5", Source: "random", Target: "a", SourceHandle: handle("branch-1")},
		{ID: "e6", Source: "random", Target: "b", SourceHandle: handle("branch-2")},
		{ID: "e7", Source: "trigger", Target: "ignored"},
		{ID: "e8", Source: "ghost", Target: "nowhere"},
		{ID: "e9", Source: "random", Target: "c", SourceHandle: handle("weird")},
	}

	routes := router.Build(edges)

	assert.Equal(t, "cond", routes.Next["trigger"], "first unlabeled edge wins")
	assert.Equal(t, "random", routes.Next["yes"])
	assert.Equal(t, "nowhere", routes.Next["ghost"], "orphan edges are kept")
	assert.Equal(t, "yes", routes.BranchTrue["cond"])
	assert.Equal(t, "no", routes.BranchFalse["cond"])
	assert.Equal(t, []string{"a", "b"}, routes.Branches["random"])

	_, ok := routes.Next["cond"]
	assert.False(t, ok)
}

func TestRoutes_Branch(t *testing.T) {
	routes := router.Build([]*models.Edge{
		{ID: "e1", Source: "cond", Target: "yes", SourceHandle: handle("true")},
	})

	target, ok := routes.Branch("cond", true)
	assert.True(t, ok)
	assert.Equal(t, "yes", target)

	_, ok = routes.Branch("cond", false)
	assert.False(t, ok)
}

func TestBuild_Empty(t *testing.T) {
	routes := router.Build(nil)

	assert.Empty(t, routes.Next)
	assert.Empty(t, routes.BranchTrue)
	assert.Empty(t, routes.BranchFalse)
	assert.Empty(t, routes.Branches)
}
