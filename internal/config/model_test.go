package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/task"
)

func TestBuildSpecs_ResolvesReferences(t *testing.T) {
	model := &Model{Pipelines: []*Pipeline{{
		Name: "p",
		Tasks: []*Task{
			{Kind: "http_fetch", Name: "a", Params: map[string]cty.Value{"url": cty.StringVal("u1")}},
			{Kind: "print", Name: "b", DependsOn: []string{"http_fetch.a"}},
		},
	}}}

	specs, err := model.BuildSpecs()
	require.NoError(t, err)
	require.Len(t, specs["p"], 2)

	wantDep := task.Identity("http_fetch", map[string]cty.Value{"url": cty.StringVal("u1")})
	assert.Equal(t, []task.Key{wantDep}, specs["p"][1].DependsOn)
}

func TestBuildSpecs_UnknownReference(t *testing.T) {
	model := &Model{Pipelines: []*Pipeline{{
		Name: "p",
		Tasks: []*Task{
			{Kind: "print", Name: "b", DependsOn: []string{"http_fetch.missing"}},
		},
	}}}

	_, err := model.BuildSpecs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestBuildSpecs_DuplicateRef(t *testing.T) {
	model := &Model{Pipelines: []*Pipeline{{
		Name: "p",
		Tasks: []*Task{
			{Kind: "print", Name: "same"},
			{Kind: "print", Name: "same"},
		},
	}}}

	_, err := model.BuildSpecs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task")
}

func TestBuildSpecs_SameParamsDifferentNamesShareIdentity(t *testing.T) {
	// Two names for the same kind+params produce specs with equal identity;
	// the scheduler deduplicates them and both references point at the one
	// shared task.
	params := map[string]cty.Value{"url": cty.StringVal("u")}
	model := &Model{Pipelines: []*Pipeline{{
		Name: "p",
		Tasks: []*Task{
			{Kind: "http_fetch", Name: "first", Params: params},
			{Kind: "http_fetch", Name: "second", Params: params},
			{Kind: "print", Name: "after", DependsOn: []string{"http_fetch.first", "http_fetch.second"}},
		},
	}}}

	specs, err := model.BuildSpecs()
	require.NoError(t, err)

	key := task.Identity("http_fetch", params)
	after := specs["p"][2]
	assert.Equal(t, []task.Key{key, key}, after.DependsOn)
}
