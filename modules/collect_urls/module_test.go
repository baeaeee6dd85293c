package collect_urls

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const indexPage = `<html><body>
<a href="https://example.com/a">a</a>
<a href="https://example.com/b">b</a>
<a href="https://example.com/a">a again</a>
<a href="/relative">skipped</a>
</body></html>`

func TestRun_ExtractsUniqueAbsoluteURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, indexPage)
	}))
	defer server.Close()

	out, err := run(context.Background(), &Input{URL: server.URL})
	require.NoError(t, err)

	urls := out.GetAttr("urls")
	require.Equal(t, 2, urls.LengthInt())
	assert.Equal(t, "https://example.com/a", urls.Index(cty.NumberIntVal(0)).AsString())
	assert.Equal(t, "https://example.com/b", urls.Index(cty.NumberIntVal(1)).AsString())
}

func TestRun_LimitCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, indexPage)
	}))
	defer server.Close()

	out, err := run(context.Background(), &Input{URL: server.URL, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out.GetAttr("urls").LengthInt())
}

func TestDiscover_ExpandsIntoFetchTasks(t *testing.T) {
	output := cty.ObjectVal(map[string]cty.Value{
		"urls": cty.ListVal([]cty.Value{
			cty.StringVal("https://example.com/a"),
			cty.StringVal("https://example.com/b"),
		}),
		"retries": cty.NumberIntVal(2),
	})

	specs, err := discover(context.Background(), output)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "http_fetch", specs[0].Kind)
	assert.Equal(t, "https://example.com/a", specs[0].Params["url"].AsString())
	assert.Equal(t, 2, specs[0].Retries)
	assert.Equal(t, "https://example.com/b", specs[1].Params["url"].AsString())
}

func TestDiscover_EmptyOutputYieldsNoTasks(t *testing.T) {
	output := cty.ObjectVal(map[string]cty.Value{
		"urls":    cty.ListValEmpty(cty.String),
		"retries": cty.NumberIntVal(0),
	})

	specs, err := discover(context.Background(), output)
	require.NoError(t, err)
	assert.Empty(t, specs)
}
