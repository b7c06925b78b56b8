package perf

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStartGatewayEventObserves(t *testing.T) {
	before := testutil.CollectAndCount(handlerSeconds)

	done := StartGatewayEvent("message_delete")
	done()
	StartGatewayEvent("  ")()

	assert.Equal(t, before+2, testutil.CollectAndCount(handlerSeconds))
}
