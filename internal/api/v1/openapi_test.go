package apiv1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecDocumentsEveryRoute(t *testing.T) {
	doc, err := LoadDocument("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)

	missing, extra := Undocumented(doc, Routes(&APIServer{}))
	assert.Empty(t, missing, "routes without an operation in openapi.yml")
	assert.Empty(t, extra, "operations without a route")
}

func TestFiberPath(t *testing.T) {
	tests := map[string]string{
		"/conversations":                             "/conversations",
		"/conversations/{id}/messages":               "/conversations/:id/messages",
		"/contacts/{contact}/bot:enable":             "/contacts/:contact/bot\\:enable",
		"/admin/tenants/{tenant}/subscriptions/{id}": "/admin/tenants/:tenant/subscriptions/:id",
	}
	for in, want := range tests {
		assert.Equal(t, want, FiberPath(in), in)
	}
}
