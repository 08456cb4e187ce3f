// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"fmt"
	"sort"

	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/util/fsm"
	mi "github.com/omec-project/util/metricinfo"
	"go.uber.org/zap"
)

// UeContext is the MME application view of one UE: radio association,
// connection state, PDN sessions and the EMM context it owns.
type UeContext struct {
	UeId        int64          `json:"mmeUeS1apId"`
	EnbUeS1apId int64          `json:"enbUeS1apId"`
	Tai         nasMessage.Tai `json:"tai"`
	Ecgi        Ecgi           `json:"ecgi"`
	EcmState    EcmState       `json:"ecmState"`
	// RRC establishment cause of the current signalling connection
	EstablishmentCause uint8 `json:"establishmentCause"`

	PdnSessions map[uint8]*PdnSession `json:"pdnSessions"`
	// session delete requests still waiting for an answer
	PendingSessionDeletes int `json:"pendingSessionDeletes"`
	// cause of the UE context release command in flight
	ReleaseCause S1apCause `json:"releaseCause"`
	// release the UE context once the pending detach completes
	DestroyOnRelease bool `json:"destroyOnRelease"`
	// a release of the signalling connection was requested from S1AP
	ReleasePending bool `json:"releasePending"`

	Emm *EmmContext `json:"emm"`

	Log *zap.SugaredLogger `json:"-"`
}

func newUeContext(ueId, enbUeS1apId int64, tai nasMessage.Tai, ecgi Ecgi) *UeContext {
	return &UeContext{
		UeId:        ueId,
		EnbUeS1apId: enbUeS1apId,
		Tai:         tai,
		Ecgi:        ecgi,
		EcmState:    EcmConnected,
		PdnSessions: make(map[uint8]*PdnSession),
		Emm:         NewEmmContext(ueId),
		Log:         logger.MmeAppLog.With(logger.FieldUeId, ueId),
	}
}

func (ue *UeContext) String() string {
	return fmt.Sprintf("ue[%d/enb %d]", ue.UeId, ue.EnbUeS1apId)
}

// AttachLogger adds the IMSI to the per-UE loggers once it is known.
func (ue *UeContext) AttachLogger(imsi string) {
	ue.Log = logger.MmeAppLog.With(logger.FieldUeId, ue.UeId, logger.FieldImsi, imsi)
	ue.Emm.Log = logger.EmmLog.With(logger.FieldUeId, ue.UeId, logger.FieldImsi, imsi)
}

func (ue *UeContext) IsConnected() bool {
	return ue.EcmState == EcmConnected
}

// ActivePdnCount counts sessions that are not being torn down.
func (ue *UeContext) ActivePdnCount() int {
	n := 0
	for _, s := range ue.PdnSessions {
		if s.State != PdnSessionDeleting {
			n++
		}
	}
	return n
}

// AllocateEbi returns the lowest free default bearer identity.
func (ue *UeContext) AllocateEbi() (uint8, error) {
	for ebi := DefaultEpsBearerIdBase; ebi < DefaultEpsBearerIdBase+uint8(MaxNumOfPdnSessions); ebi++ {
		if _, ok := ue.PdnSessions[ebi]; !ok {
			return ebi, nil
		}
	}
	return 0, fmt.Errorf("no free EPS bearer identity")
}

func (ue *UeContext) AddPdnSession(s *PdnSession) {
	ue.PdnSessions[s.Ebi] = s
}

func (ue *UeContext) RemovePdnSession(ebi uint8) {
	delete(ue.PdnSessions, ebi)
}

// SortedPdnSessions returns sessions ordered by EBI.
func (ue *UeContext) SortedPdnSessions() []*PdnSession {
	out := make([]*PdnSession, 0, len(ue.PdnSessions))
	for _, s := range ue.PdnSessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ebi < out[j].Ebi })
	return out
}

func getPublishUeCtxtInfoOp(state fsm.StateType) mi.SubscriberOp {
	switch state {
	case Deregistered, DeregistrationInitiated:
		return mi.SubsOpDel
	case CommonProcedureInitiated:
		return mi.SubsOpAdd
	default:
		return mi.SubsOpMod
	}
}

// PublishUeCtxtInfo collects the UE context info and publishes it on the
// Kafka stream. The event is built here; only the write is asynchronous.
func (ue *UeContext) PublishUeCtxtInfo(nfId string) {
	writer := metrics.GetWriter()
	if !writer.Enabled() {
		return
	}
	state := ue.Emm.State.Current()
	op := getPublishUeCtxtInfoOp(state)

	kafkaUeCtxt := mi.CoreSubscriber{}
	kafkaUeCtxt.Imsi = ue.Emm.Imsi.Value()
	kafkaUeCtxt.AmfId = nfId
	if guti, ok := ue.Emm.Guti.Get(); ok {
		kafkaUeCtxt.Guti = guti.String()
		kafkaUeCtxt.Tmsi = int32(guti.MTmsi)
	}
	kafkaUeCtxt.AmfNgapId = ue.UeId
	kafkaUeCtxt.RanNgapId = ue.EnbUeS1apId
	kafkaUeCtxt.AmfSubState = string(state)
	kafkaUeCtxt.UeState = string(ue.EcmState)

	go func() {
		if err := writer.PublishUeCtxtEvent(kafkaUeCtxt, op); err != nil {
			logger.CtxLog.Errorf("could not publish ue context event: %v", err)
		}
	}()
}
