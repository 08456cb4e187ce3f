// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package emm

import (
	"testing"
	"time"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/mme/nas/nas_security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPlmn = nasMessage.PlmnId{Mcc: "208", Mnc: "93"}

// a timer that never fires during a test
var idleTimer = factory.TimerValue{Enable: true, ExpireTime: time.Hour, MaxRetryTimes: 4}

func newTestConfig() *factory.Configuration {
	return &factory.Configuration{
		MmeName: "mme-test",
		ServedGummeiList: []factory.Gummei{
			{PlmnId: factory.PlmnId{Mcc: "208", Mnc: "93"}, MmeGroupId: 1, MmeCode: 1},
		},
		SupportTaiList: []factory.Tai{
			{PlmnId: factory.PlmnId{Mcc: "208", Mnc: "93"}, Tac: 1},
			{PlmnId: factory.PlmnId{Mcc: "208", Mnc: "93"}, Tac: 2},
		},
		Security: &factory.Security{
			IntegrityOrder: []string{"EIA2"},
			CipheringOrder: []string{"EEA0"},
		},
		Nas: &factory.Nas{NonEpsServiceControl: factory.NonEpsServiceControlCsfbSms},
	}
}

func newTestMme(cfg *factory.Configuration) (*context.MmeContext, *itti.MemoryBus) {
	mme := context.NewMmeContext(factory.NewConfigProvider(&factory.Config{Configuration: cfg}), nil)
	return mme, mme.Bus.(*itti.MemoryBus)
}

func newTestUe(t *testing.T, mme *context.MmeContext, imsi string) *context.UeContext {
	t.Helper()
	ue, err := mme.NewUeContext(21, nasMessage.Tai{PlmnId: testPlmn, Tac: 1}, context.Ecgi{PlmnId: testPlmn, CellId: 1})
	require.NoError(t, err)
	if imsi != "" {
		mme.BindImsi(ue, imsi)
	}
	ue.Log = zap.NewNop().Sugar()
	ue.Emm.Log = zap.NewNop().Sugar()
	ue.Emm.UeNetworkCapability = nasMessage.UeNetworkCapability{0xe0, 0xe0}
	return ue
}

// registerUe puts ue in EMM-REGISTERED with an activated security context
// that uses null ciphering.
func registerUe(t *testing.T, mme *context.MmeContext, ue *context.UeContext) {
	t.Helper()
	vector := &context.AuthVector{Kasme: make([]byte, 32), Xres: []byte{1, 2, 3, 4}}
	sc := context.NewSecurityContext(1, vector)
	require.NoError(t, sc.SelectAlgorithms(ue.Emm.UeNetworkCapability, mme.CipheringOrder(), mme.IntegrityOrder()))
	require.NoError(t, sc.DeriveNasKeys())
	sc.Activated = true
	ue.Emm.SecurityContext = sc
	_, err := mme.AllocateGuti(ue)
	require.NoError(t, err)
	ue.Emm.TaiList = nasMessage.TaiList{ue.Tai}
	ue.Emm.State.Set(context.Registered)
}

func dispatch(t *testing.T, mme *context.MmeContext, ue *context.UeContext, body nasMessage.Body) {
	t.Helper()
	require.NoError(t, Dispatch(mme, ue, &nasMessage.Message{Body: body}, nas_security.DecodeStatus{}))
}

// downlinks decodes the NAS PDUs handed to S1AP. Protected PDUs are expected
// to use null ciphering.
func downlinks(t *testing.T, bus *itti.MemoryBus) []nasMessage.Body {
	t.Helper()
	var out []nasMessage.Body
	for _, m := range bus.Sent() {
		var pdu []byte
		switch msg := m.(type) {
		case *itti.DownlinkNasTransport:
			pdu = msg.NasPdu
		case *itti.InitialContextSetupRequest:
			pdu = msg.NasPdu
		default:
			continue
		}
		if len(pdu) == 0 {
			continue
		}
		if pdu[0]>>4 != nasMessage.SecurityHeaderTypePlainNas {
			pdu = pdu[6:]
		}
		body, err := nasMessage.DecodePlain(pdu)
		require.NoError(t, err)
		out = append(out, body)
	}
	return out
}

func lastDownlink(t *testing.T, bus *itti.MemoryBus) nasMessage.Body {
	t.Helper()
	bodies := downlinks(t, bus)
	require.NotEmpty(t, bodies)
	return bodies[len(bodies)-1]
}

func counterValue(name string, labels prometheus.Labels) float64 {
	return testutil.ToFloat64(metrics.Counter(name).With(labels))
}
