package task

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestIdentity_Deterministic(t *testing.T) {
	params := map[string]cty.Value{
		"url":   cty.StringVal("https://example.com/1"),
		"depth": cty.NumberIntVal(2),
	}

	first := Identity("http_fetch", params)
	second := Identity("http_fetch", params)
	assert.Equal(t, first, second)
}

func TestIdentity_IndependentConstruction(t *testing.T) {
	// Two tasks built independently with the same kind and params must
	// resolve to the same identity, even with different instance names.
	a := New(Spec{
		Kind:   "http_fetch",
		Name:   "page_one",
		Params: map[string]cty.Value{"url": cty.StringVal("https://example.com/1")},
	})
	b := New(Spec{
		Kind:   "http_fetch",
		Name:   "page_one_again",
		Params: map[string]cty.Value{"url": cty.StringVal("https://example.com/1")},
	})

	assert.Equal(t, a.Key(), b.Key())
}

func TestIdentity_ParamOrderIrrelevant(t *testing.T) {
	// Map iteration order is randomized in Go; run enough constructions that
	// an order-sensitive encoding would be caught.
	want := Identity("file_write", map[string]cty.Value{
		"path":    cty.StringVal("out/a.txt"),
		"content": cty.StringVal("hello"),
		"mode":    cty.StringVal("overwrite"),
	})
	for i := 0; i < 50; i++ {
		got := Identity("file_write", map[string]cty.Value{
			"mode":    cty.StringVal("overwrite"),
			"content": cty.StringVal("hello"),
			"path":    cty.StringVal("out/a.txt"),
		})
		require.Equal(t, want, got)
	}
}

func TestIdentity_DistinguishesKindAndParams(t *testing.T) {
	base := Identity("http_fetch", map[string]cty.Value{"url": cty.StringVal("https://example.com")})

	otherKind := Identity("collect_urls", map[string]cty.Value{"url": cty.StringVal("https://example.com")})
	assert.NotEqual(t, base, otherKind)

	otherParams := Identity("http_fetch", map[string]cty.Value{"url": cty.StringVal("https://example.com/2")})
	assert.NotEqual(t, base, otherParams)

	noParams := Identity("http_fetch", nil)
	assert.NotEqual(t, base, noParams)
}

func TestIdentity_KeyShape(t *testing.T) {
	key := Identity("print", nil)
	assert.Regexp(t, `^task\.print\.[0-9a-f]{16}$`, string(key))
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"transient wrapper", Transient(cause), true},
		{"terminal wrapper", Terminal(cause), false},
		{"unclassified defaults to terminal", cause, false},
		{"wrapped transient survives fmt.Errorf", fmt.Errorf("executing: %w", Transient(cause)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestErrorWrappersPreserveCause(t *testing.T) {
	cause := errors.New("disk full")
	require.ErrorIs(t, Transient(cause), cause)
	require.ErrorIs(t, Terminal(cause), cause)
	assert.Nil(t, Transient(nil))
	assert.Nil(t, Terminal(nil))
}
