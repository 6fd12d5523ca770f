package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/ragbot/internal/metrics"
	"github.com/stretchr/testify/assert"
)

func TestWriteStats(t *testing.T) {
	c := metrics.NewCollector()
	c.Observe(metrics.OpIndexSearch, 12*time.Millisecond, nil)
	c.Observe(metrics.OpGenerate, 2*time.Second, errors.New("boom"))
	c.AddTokens(metrics.OpGenerate, 120, 30)

	var buf bytes.Buffer
	writeStats(&buf, c.Snapshot())
	out := buf.String()

	assert.Contains(t, out, "index_search:\n  Calls: 1, Errors: 0, Total: 12ms")
	assert.Contains(t, out, "generate:\n  Calls: 1, Errors: 1, Total: 2s")
	assert.Contains(t, out, "Tokens: 120 in, 30 out")
	assert.NotContains(t, out, "fetch:")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("index_search:")), bytes.Index(buf.Bytes(), []byte("generate:")))
}
