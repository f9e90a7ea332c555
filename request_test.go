package httpmock

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_BodyReplay(t *testing.T) {
	req := NewRequest(context.Background(), "post", URI{}, nil, strings.NewReader("payload"))

	first, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), first)

	second, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRequest_MethodUppercased(t *testing.T) {
	req := NewRequest(context.Background(), "get", URI{}, nil, nil)
	assert.Equal(t, "GET", req.Method)
}

func TestRequest_CancelledReflectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := NewRequest(ctx, "GET", URI{}, nil, nil)
	assert.False(t, req.Cancelled())
	cancel()
	assert.True(t, req.Cancelled())
}

func TestRequest_HeaderValuesCaseInsensitive(t *testing.T) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	req := NewRequest(context.Background(), "GET", URI{}, h, nil)
	assert.Equal(t, []string{"application/json"}, req.HeaderValues("accept"))
}
