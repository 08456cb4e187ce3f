// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/util/fsm"
	"go.uber.org/zap"
)

// EMM states
const (
	Deregistered             fsm.StateType = "Deregistered"
	CommonProcedureInitiated fsm.StateType = "CommonProcedureInitiated"
	Registered               fsm.StateType = "Registered"
	DeregistrationInitiated  fsm.StateType = "DeregistrationInitiated"
)

type ProcedureType string

const (
	ProcedureAttach             ProcedureType = "attach"
	ProcedureDetach             ProcedureType = "detach"
	ProcedureTau                ProcedureType = "tau"
	ProcedureAuthentication     ProcedureType = "authentication"
	ProcedureSecurityMode       ProcedureType = "security-mode"
	ProcedureIdentification     ProcedureType = "identification"
	ProcedureServiceRequest     ProcedureType = "service-request"
	ProcedureNetworkDetach      ProcedureType = "network-detach"
	ProcedureExtendedServiceReq ProcedureType = "extended-service-request"
)

// Procedure is a pending EMM procedure. Pdu holds the last downlink NAS PDU
// so a timer expiry can retransmit it unchanged.
type Procedure struct {
	Type  ProcedureType `json:"type"`
	Timer *Timer        `json:"-"`
	Pdu   []byte        `json:"pdu,omitempty"`
	// cause or type carried by the procedure, e.g. the reject cause of a
	// pending attach or the detach type of a network detach
	Cause uint8 `json:"cause,omitempty"`
	// restarts after an authentication failure
	Retries int `json:"retries,omitempty"`
}

// CsfbParameters holds the CS fallback and VoLTE side data negotiated at attach.
type CsfbParameters struct {
	AdditionalUpdateType  Member[uint8]  `json:"additionalUpdateType"`
	VoiceDomainPreference Member[[]byte] `json:"voiceDomainPreference"`
	MsNetworkCapability   Member[[]byte] `json:"msNetworkCapability"`
	CsfbResponse          Member[uint8]  `json:"csfbResponse"`
	SgsAssociated         bool           `json:"sgsAssociated"`
}

// DetachFlags records the last detach request.
type DetachFlags struct {
	DetachType        uint8 `json:"detachType"`
	SwitchOff         bool  `json:"switchOff"`
	NetworkInitiated  bool  `json:"networkInitiated"`
	ImsiOnly          bool  `json:"imsiOnly"`
	ReattachRequested bool  `json:"reattachRequested"`
	Cause             uint8 `json:"cause,omitempty"`
}

// EmmContext is the EPS mobility management part of a UE context. It is owned
// by exactly one UeContext; UeId refers back to it through the MME UE table.
type EmmContext struct {
	UeId  int64      `json:"ueId"`
	State *fsm.State `json:"-"`

	Imsi    Member[string]          `json:"imsi"`
	Imei    Member[string]          `json:"imei"`
	Imeisv  Member[string]          `json:"imeisv"`
	Guti    Member[nasMessage.Guti] `json:"guti"`
	OldGuti Member[nasMessage.Guti] `json:"oldGuti"`

	AttachType          uint8                          `json:"attachType"`
	UeNetworkCapability nasMessage.UeNetworkCapability `json:"ueNetworkCapability,omitempty"`
	DrxParameter        []byte                         `json:"drxParameter,omitempty"`
	LastVisitedTai      Member[nasMessage.Tai]         `json:"lastVisitedTai"`
	TaiList             nasMessage.TaiList             `json:"taiList,omitempty"`
	// ESM container of the attach request, forwarded with create session
	PendingEsmMessage []byte `json:"pendingEsmMessage,omitempty"`

	SecurityContext           *SecurityContext `json:"securityContext,omitempty"`
	NonCurrentSecurityContext *SecurityContext `json:"nonCurrentSecurityContext,omitempty"`
	// incremented for every authentication
	KsiCounter uint8 `json:"ksiCounter"`

	Procedures map[ProcedureType]*Procedure `json:"-"`

	Csfb   CsfbParameters `json:"csfb"`
	Detach DetachFlags    `json:"detach"`

	// set while a MAC mismatch has been tolerated for the current message
	MacFailed bool `json:"-"`

	Log *zap.SugaredLogger `json:"-"`
}

func NewEmmContext(ueId int64) *EmmContext {
	return &EmmContext{
		UeId:       ueId,
		State:      fsm.NewState(Deregistered),
		Procedures: make(map[ProcedureType]*Procedure),
		Log:        logger.EmmLog.With(logger.FieldUeId, ueId),
	}
}

// SecurityContextAvailable reports whether the current context can protect messages.
func (emm *EmmContext) SecurityContextAvailable() bool {
	return emm.SecurityContext.Available()
}

// NextKsi returns the eKSI for a new authentication, skipping "no key available".
func (emm *EmmContext) NextKsi() uint8 {
	ksi := emm.KsiCounter % nasMessage.NasKeySetIdentifierNoKeyAvailable
	emm.KsiCounter++
	return ksi
}

// NewNonCurrentSecurityContext installs sc as the non-current context. The
// previous non-current context, if any, is discarded.
func (emm *EmmContext) NewNonCurrentSecurityContext(sc *SecurityContext) {
	emm.NonCurrentSecurityContext = sc
}

// PromoteSecurityContext makes the non-current context current. The old
// current context is kept as a snapshot in the non-current slot so a UE that
// still uses the old keys can be recognised.
func (emm *EmmContext) PromoteSecurityContext() {
	if emm.NonCurrentSecurityContext == nil {
		return
	}
	next := emm.NonCurrentSecurityContext
	if emm.SecurityContext.Available() {
		emm.NonCurrentSecurityContext = emm.SecurityContext.Clone()
	} else {
		emm.NonCurrentSecurityContext = nil
	}
	emm.SecurityContext = next
}

// ClearSecurityContexts destroys both security contexts.
func (emm *EmmContext) ClearSecurityContexts() {
	emm.SecurityContext = nil
	emm.NonCurrentSecurityContext = nil
}

// StartProcedure registers a pending procedure of type t, replacing and
// stopping any earlier one of the same type.
func (emm *EmmContext) StartProcedure(t ProcedureType, timers *TimerManager) *Procedure {
	emm.StopProcedure(t, timers)
	p := &Procedure{Type: t}
	emm.Procedures[t] = p
	return p
}

func (emm *EmmContext) Procedure(t ProcedureType) (*Procedure, bool) {
	p, ok := emm.Procedures[t]
	return p, ok
}

// StopProcedure stops the procedure timer and forgets the procedure.
func (emm *EmmContext) StopProcedure(t ProcedureType, timers *TimerManager) {
	p, ok := emm.Procedures[t]
	if !ok {
		return
	}
	if p.Timer != nil && timers != nil {
		timers.Stop(p.Timer)
	}
	delete(emm.Procedures, t)
}

func (emm *EmmContext) ClearProcedures(timers *TimerManager) {
	for t := range emm.Procedures {
		emm.StopProcedure(t, timers)
	}
}

// IsCombinedAttach reports whether the UE attached for EPS and non-EPS services.
func (emm *EmmContext) IsCombinedAttach() bool {
	return emm.AttachType == nasMessage.EpsAttachTypeCombinedEpsImsi
}

// Clear zeroes identities and security state, leaving the context deregistered.
func (emm *EmmContext) Clear(timers *TimerManager) {
	emm.ClearProcedures(timers)
	emm.Imsi.Clear()
	emm.Imei.Clear()
	emm.Imeisv.Clear()
	emm.Guti.Clear()
	emm.OldGuti.Clear()
	emm.LastVisitedTai.Clear()
	emm.ClearSecurityContexts()
	emm.PendingEsmMessage = nil
	emm.Csfb = CsfbParameters{}
	emm.Detach = DetachFlags{}
	emm.State.Set(Deregistered)
}
