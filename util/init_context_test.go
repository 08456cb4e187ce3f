// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package util

import (
	"testing"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMmeContext(t *testing.T) {
	provider := factory.NewConfigProvider(&factory.Config{
		Info: &factory.Info{Version: factory.MME_EXPECTED_CONFIG_VERSION},
		Configuration: &factory.Configuration{
			MmeName: "mme-util",
			ServedGummeiList: []factory.Gummei{
				{PlmnId: factory.PlmnId{Mcc: "208", Mnc: "93"}, MmeGroupId: 4, MmeCode: 1},
			},
		},
	})
	t.Setenv("HOSTNAME", "mme-0")

	mme, err := InitMmeContext(provider)
	require.NoError(t, err)
	assert.Equal(t, "mme-util", mme.Name)
	assert.Equal(t, "mme-0", mme.NfId)
	assert.IsType(t, &context.MemoryStore{}, mme.Store)
	assert.IsType(t, &itti.MemoryBus{}, mme.Bus)
	assert.Len(t, mme.ServedGummeiList, 1)
}

func TestNewBusWithItti(t *testing.T) {
	bus := NewBus(&factory.Configuration{Itti: &factory.Itti{Brokers: []string{"127.0.0.1:9092"}}})
	kafkaBus, ok := bus.(*itti.KafkaBus)
	require.True(t, ok)
	_ = kafkaBus.Close()
}
