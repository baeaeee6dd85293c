// Package collect_urls provides a task kind that fetches a page, extracts
// the URLs it links to, and discovers one downstream http_fetch task per
// extracted URL.
//
// The expensive part (the network fetch and extraction) runs inside the
// task body on a worker; the Discover hook only unpacks the already-computed
// output, keeping the coordinator's discovery step cheap.
package collect_urls

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/registry"
	"github.com/pipedag/pipedag/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the collect_urls kind.
type Input struct {
	URL string `cty:"url"`
	// Limit caps how many extracted URLs are reported. Zero means no cap.
	Limit int `cty:"limit,optional"`
	// Retries is forwarded to the discovered fetch tasks.
	Retries int `cty:"retries,optional"`
}

// hrefRegex extracts absolute http(s) URLs from anchor tags.
var hrefRegex = regexp.MustCompile(`href="(https?://[^"]+)"`)

// run is the handler for the 'collect_urls' task kind.
func run(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("url", input.URL)
	logger.Info("Collecting URLs")

	client := resty.New()
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(input.URL)
	if err != nil {
		return cty.NilVal, task.Transient(fmt.Errorf("fetching index page: %w", err))
	}
	if resp.IsError() {
		return cty.NilVal, task.Terminal(fmt.Errorf("index page rejected: %s", resp.Status()))
	}

	var urls []cty.Value
	seen := make(map[string]bool)
	for _, match := range hrefRegex.FindAllStringSubmatch(resp.String(), -1) {
		url := strings.TrimSpace(match[1])
		if seen[url] {
			continue
		}
		seen[url] = true
		urls = append(urls, cty.StringVal(url))
		if input.Limit > 0 && len(urls) >= input.Limit {
			break
		}
	}
	logger.Info("Collected URLs", "count", len(urls))

	urlList := cty.ListValEmpty(cty.String)
	if len(urls) > 0 {
		urlList = cty.ListVal(urls)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"urls":    urlList,
		"retries": cty.NumberIntVal(int64(input.Retries)),
	}), nil
}

// discover expands the collected URLs into downstream http_fetch tasks. It
// runs on the scheduler's coordinating loop and does no I/O.
func discover(ctx context.Context, output cty.Value) ([]task.Spec, error) {
	retries, _ := output.GetAttr("retries").AsBigFloat().Int64()

	var specs []task.Spec
	for it := output.GetAttr("urls").ElementIterator(); it.Next(); {
		idx, v := it.Element()
		i, _ := idx.AsBigFloat().Int64()
		specs = append(specs, task.Spec{
			Kind:    "http_fetch",
			Name:    fmt.Sprintf("collected_%d", i),
			Params:  map[string]cty.Value{"url": v},
			Retries: int(retries),
		})
	}
	return specs, nil
}

// Register registers the kind with the scheduler's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("collect_urls", &registry.Kind{
		NewInput: func() any { return new(Input) },
		Fn:       run,
		Discover: discover,
	})
}
