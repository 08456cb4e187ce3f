// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementDeclaredCounter(t *testing.T) {
	vec := Counter("service_request")
	require.NotNil(t, vec)
	failure := vec.With(prometheus.Labels{"result": "failure", "cause": "implicitly_detached"})
	success := vec.With(prometheus.Labels{"result": "success", "cause": ""})
	beforeFailure := testutil.ToFloat64(failure)
	beforeSuccess := testutil.ToFloat64(success)

	IncrementCounter("service_request", Label{"result", "failure"}, Label{"cause", "implicitly_detached"})
	IncrementCounter("service_request", Label{"result", "success"})

	assert.Equal(t, beforeFailure+1, testutil.ToFloat64(failure))
	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(success))
}

func TestIncrementUnknownKeyIgnored(t *testing.T) {
	vec := Counter("ue_detach")
	require.NotNil(t, vec)
	before := testutil.CollectAndCount(vec)

	IncrementCounter("ue_detach", Label{"result", "success"})
	assert.Equal(t, before, testutil.CollectAndCount(vec))
}

func TestIncrementBindsOnFirstUse(t *testing.T) {
	IncrementCounter("test_first_use", Label{"kind", "a"})
	IncrementCounter("test_first_use", Label{"other", "b"})

	vec := Counter("test_first_use")
	require.NotNil(t, vec)
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("a")))
	assert.Equal(t, 1, testutil.CollectAndCount(vec))
}

func TestSendMessageWithoutStream(t *testing.T) {
	var w Writer
	assert.False(t, w.Enabled())
	assert.NoError(t, w.SendMessage([]byte("{}")))
	assert.NoError(t, w.Close())
}
