package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePipeline = `
pipeline "crawl" {
  task "collect_urls" "seeds" {
    params = { url = "https://example.com/index" }
  }

  task "http_fetch" "page_one" {
    params     = { url = "https://example.com/1" }
    depends_on = ["collect_urls.seeds"]
    retries    = 2
  }

  task "print" "report" {
    depends_on = ["http_fetch.page_one"]
  }
}
`

func TestParse_TranslatesPipeline(t *testing.T) {
	model, err := NewLoader().Parse(context.Background(), []byte(samplePipeline), "crawl.hcl")
	require.NoError(t, err)
	require.Len(t, model.Pipelines, 1)

	p := model.Pipelines[0]
	assert.Equal(t, "crawl", p.Name)
	require.Len(t, p.Tasks, 3)

	fetch := p.Tasks[1]
	assert.Equal(t, "http_fetch", fetch.Kind)
	assert.Equal(t, "page_one", fetch.Name)
	assert.Equal(t, []string{"collect_urls.seeds"}, fetch.DependsOn)
	assert.Equal(t, 2, fetch.Retries)
	require.Contains(t, fetch.Params, "url")
	assert.Equal(t, "https://example.com/1", fetch.Params["url"].AsString())

	report := p.Tasks[2]
	assert.Empty(t, report.Params)
	assert.Zero(t, report.Retries)
}

func TestParse_RejectsInvalidHCL(t *testing.T) {
	_, err := NewLoader().Parse(context.Background(), []byte(`pipeline "x" {`), "broken.hcl")
	require.Error(t, err)
}

func TestParse_RejectsNonObjectParams(t *testing.T) {
	src := `
pipeline "x" {
  task "print" "p" {
    params = "not-an-object"
  }
}
`
	_, err := NewLoader().Parse(context.Background(), []byte(src), "bad.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params must be an object")
}

func TestLoad_WalksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`
pipeline "one" {
  task "print" "p" {}
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.hcl"), []byte(`
pipeline "two" {
  task "print" "p" {}
}
`), 0o644))

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, model.Pipelines, 2)
}

func TestLoad_SingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "solo.hcl")
	require.NoError(t, os.WriteFile(file, []byte(samplePipeline), 0o644))

	model, err := NewLoader().Load(context.Background(), file)
	require.NoError(t, err)
	assert.Len(t, model.Pipelines, 1)
}
