// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

// Package itti carries the messages exchanged between the MME core and its
// collaborator tasks: S1AP towards the eNB, S11 towards the serving gateway
// and S6a towards the HSS.
package itti

import (
	"github.com/omec-project/mme/nas/nasMessage"
)

type TaskId string

const (
	TaskMme  TaskId = "MME"
	TaskS1ap TaskId = "S1AP"
	TaskS11  TaskId = "S11"
	TaskS6a  TaskId = "S6A"
)

type MessageType string

const (
	// MME to S1AP
	S1apDownlinkNasTransport       MessageType = "S1AP_DOWNLINK_NAS_TRANSPORT"
	S1apInitialContextSetupRequest MessageType = "S1AP_INITIAL_CONTEXT_SETUP_REQUEST"
	S1apUeContextReleaseCommand    MessageType = "S1AP_UE_CONTEXT_RELEASE_COMMAND"
	S1apErabSetupRequest           MessageType = "S1AP_ERAB_SETUP_REQUEST"

	// S1AP to MME
	S1apInitialUeMessage         MessageType = "S1AP_INITIAL_UE_MESSAGE"
	S1apUplinkNasTransport       MessageType = "S1AP_UPLINK_NAS_TRANSPORT"
	S1apNasNonDeliveryIndication MessageType = "S1AP_NAS_NON_DELIVERY_INDICATION"
	S1apUeContextReleaseRequest  MessageType = "S1AP_UE_CONTEXT_RELEASE_REQUEST"
	S1apUeContextReleaseComplete MessageType = "S1AP_UE_CONTEXT_RELEASE_COMPLETE"

	// S11
	S11CreateSessionRequest  MessageType = "S11_CREATE_SESSION_REQUEST"
	S11CreateSessionResponse MessageType = "S11_CREATE_SESSION_RESPONSE"
	S11DeleteSessionRequest  MessageType = "S11_DELETE_SESSION_REQUEST"
	S11DeleteSessionResponse MessageType = "S11_DELETE_SESSION_RESPONSE"

	// S6a
	S6aAuthInfoRequest MessageType = "S6A_AUTH_INFO_REQUEST"
	S6aAuthInfoAnswer  MessageType = "S6A_AUTH_INFO_ANSWER"
	S6aPurgeRequest    MessageType = "S6A_PURGE_REQUEST"
	S6aPurgeAnswer     MessageType = "S6A_PURGE_ANSWER"
)

// Message is one ITTI message. TaskKey selects the MME task loop shard, so
// every message about one UE returns the same key.
type Message interface {
	MessageType() MessageType
	Destination() TaskId
	TaskKey() int64
}

// Disposition tells S1AP what to do with the signalling connection once a
// downlink NAS message has been delivered.
type Disposition uint8

const (
	DispositionSuccess Disposition = iota
	DispositionReleaseAfterSend
	DispositionTerminateAfterSend
)

func (d Disposition) String() string {
	switch d {
	case DispositionReleaseAfterSend:
		return "release-after-send"
	case DispositionTerminateAfterSend:
		return "terminate-after-send"
	default:
		return "success"
	}
}

type Ecgi struct {
	PlmnId nasMessage.PlmnId `json:"plmnId"`
	CellId uint32            `json:"cellId"`
}

// Result codes shared by S11 and S6a answers.
const (
	ResultSuccess        uint32 = 2001
	ResultUnableToComply uint32 = 5012
	ResultUserUnknown    uint32 = 5001
)

type DownlinkNasTransport struct {
	UeId        int64       `json:"mmeUeS1apId"`
	EnbUeS1apId int64       `json:"enbUeS1apId"`
	NasPdu      []byte      `json:"nasPdu"`
	Disposition Disposition `json:"disposition"`
}

func (*DownlinkNasTransport) MessageType() MessageType { return S1apDownlinkNasTransport }
func (*DownlinkNasTransport) Destination() TaskId      { return TaskS1ap }
func (m *DownlinkNasTransport) TaskKey() int64         { return m.UeId }

type ErabToSetup struct {
	Ebi     uint8  `json:"ebi"`
	SgwTeid uint32 `json:"sgwTeid"`
	NasPdu  []byte `json:"nasPdu,omitempty"`
}

type InitialContextSetupRequest struct {
	UeId                 int64         `json:"mmeUeS1apId"`
	EnbUeS1apId          int64         `json:"enbUeS1apId"`
	Kenb                 []byte        `json:"kenb"`
	UeSecurityCapability []byte        `json:"ueSecurityCapability,omitempty"`
	Erabs                []ErabToSetup `json:"erabs,omitempty"`
	NasPdu               []byte        `json:"nasPdu,omitempty"`
}

func (*InitialContextSetupRequest) MessageType() MessageType { return S1apInitialContextSetupRequest }
func (*InitialContextSetupRequest) Destination() TaskId      { return TaskS1ap }
func (m *InitialContextSetupRequest) TaskKey() int64         { return m.UeId }

type UeContextReleaseCommand struct {
	UeId        int64  `json:"mmeUeS1apId"`
	EnbUeS1apId int64  `json:"enbUeS1apId"`
	Cause       string `json:"cause"`
}

func (*UeContextReleaseCommand) MessageType() MessageType { return S1apUeContextReleaseCommand }
func (*UeContextReleaseCommand) Destination() TaskId      { return TaskS1ap }
func (m *UeContextReleaseCommand) TaskKey() int64         { return m.UeId }

type ErabSetupRequest struct {
	UeId        int64       `json:"mmeUeS1apId"`
	EnbUeS1apId int64       `json:"enbUeS1apId"`
	Erab        ErabToSetup `json:"erab"`
}

func (*ErabSetupRequest) MessageType() MessageType { return S1apErabSetupRequest }
func (*ErabSetupRequest) Destination() TaskId      { return TaskS1ap }
func (m *ErabSetupRequest) TaskKey() int64         { return m.UeId }

// InitialUeMessage opens a signalling connection. UeId is filled in when the
// message is queued: the id of the UE context it resolves to, or an id
// reserved for a new one. Until then the eNB side id selects the shard.
type InitialUeMessage struct {
	UeId               int64          `json:"mmeUeS1apId,omitempty"`
	EnbUeS1apId        int64          `json:"enbUeS1apId"`
	NasPdu             []byte         `json:"nasPdu"`
	Tai                nasMessage.Tai `json:"tai"`
	Ecgi               Ecgi           `json:"ecgi"`
	EstablishmentCause uint8          `json:"rrcEstablishmentCause"`
	// M-TMSI of the S-TMSI the eNB received in RRC connection setup
	MTmsi *uint32 `json:"mTmsi,omitempty"`
}

func (*InitialUeMessage) MessageType() MessageType { return S1apInitialUeMessage }
func (*InitialUeMessage) Destination() TaskId      { return TaskMme }
func (m *InitialUeMessage) TaskKey() int64 {
	if m.UeId != 0 {
		return m.UeId
	}
	return m.EnbUeS1apId
}

type UplinkNasTransport struct {
	UeId        int64          `json:"mmeUeS1apId"`
	EnbUeS1apId int64          `json:"enbUeS1apId"`
	NasPdu      []byte         `json:"nasPdu"`
	Tai         nasMessage.Tai `json:"tai"`
	Ecgi        Ecgi           `json:"ecgi"`
}

func (*UplinkNasTransport) MessageType() MessageType { return S1apUplinkNasTransport }
func (*UplinkNasTransport) Destination() TaskId      { return TaskMme }
func (m *UplinkNasTransport) TaskKey() int64         { return m.UeId }

// NasNonDeliveryIndication reports a downlink NAS PDU the eNB could not deliver.
type NasNonDeliveryIndication struct {
	UeId   int64  `json:"mmeUeS1apId"`
	NasPdu []byte `json:"nasPdu"`
	Cause  string `json:"cause"`
}

func (*NasNonDeliveryIndication) MessageType() MessageType { return S1apNasNonDeliveryIndication }
func (*NasNonDeliveryIndication) Destination() TaskId      { return TaskMme }
func (m *NasNonDeliveryIndication) TaskKey() int64         { return m.UeId }

type UeContextReleaseRequest struct {
	UeId  int64  `json:"mmeUeS1apId"`
	Cause string `json:"cause"`
}

func (*UeContextReleaseRequest) MessageType() MessageType { return S1apUeContextReleaseRequest }
func (*UeContextReleaseRequest) Destination() TaskId      { return TaskMme }
func (m *UeContextReleaseRequest) TaskKey() int64         { return m.UeId }

type UeContextReleaseComplete struct {
	UeId int64 `json:"mmeUeS1apId"`
}

func (*UeContextReleaseComplete) MessageType() MessageType { return S1apUeContextReleaseComplete }
func (*UeContextReleaseComplete) Destination() TaskId      { return TaskMme }
func (m *UeContextReleaseComplete) TaskKey() int64         { return m.UeId }

type CreateSessionRequest struct {
	UeId         int64             `json:"mmeUeS1apId"`
	Imsi         string            `json:"imsi"`
	Ebi          uint8             `json:"ebi"`
	Apn          string            `json:"apn,omitempty"`
	PdnType      uint8             `json:"pdnType"`
	ServingPlmn  nasMessage.PlmnId `json:"servingPlmn"`
	Tai          nasMessage.Tai    `json:"tai"`
	Ecgi         Ecgi              `json:"ecgi"`
	EsmContainer []byte            `json:"esmContainer,omitempty"`
}

func (*CreateSessionRequest) MessageType() MessageType { return S11CreateSessionRequest }
func (*CreateSessionRequest) Destination() TaskId      { return TaskS11 }
func (m *CreateSessionRequest) TaskKey() int64         { return m.UeId }

// CreateSessionResponse carries the ESM Activate Default EPS Bearer Context
// Request already encoded by the session management side.
type CreateSessionResponse struct {
	UeId         int64  `json:"mmeUeS1apId"`
	Ebi          uint8  `json:"ebi"`
	Cause        uint32 `json:"cause"`
	Apn          string `json:"apn,omitempty"`
	SgwTeid      uint32 `json:"sgwTeid"`
	PdnAddress   string `json:"pdnAddress,omitempty"`
	EsmContainer []byte `json:"esmContainer,omitempty"`
}

func (*CreateSessionResponse) MessageType() MessageType { return S11CreateSessionResponse }
func (*CreateSessionResponse) Destination() TaskId      { return TaskMme }
func (m *CreateSessionResponse) TaskKey() int64         { return m.UeId }

type DeleteSessionRequest struct {
	UeId    int64  `json:"mmeUeS1apId"`
	Imsi    string `json:"imsi"`
	Ebi     uint8  `json:"ebi"`
	SgwTeid uint32 `json:"sgwTeid"`
}

func (*DeleteSessionRequest) MessageType() MessageType { return S11DeleteSessionRequest }
func (*DeleteSessionRequest) Destination() TaskId      { return TaskS11 }
func (m *DeleteSessionRequest) TaskKey() int64         { return m.UeId }

type DeleteSessionResponse struct {
	UeId  int64  `json:"mmeUeS1apId"`
	Ebi   uint8  `json:"ebi"`
	Cause uint32 `json:"cause"`
}

func (*DeleteSessionResponse) MessageType() MessageType { return S11DeleteSessionResponse }
func (*DeleteSessionResponse) Destination() TaskId      { return TaskMme }
func (m *DeleteSessionResponse) TaskKey() int64         { return m.UeId }

type AuthInfoRequest struct {
	UeId        int64             `json:"mmeUeS1apId"`
	Imsi        string            `json:"imsi"`
	VisitedPlmn nasMessage.PlmnId `json:"visitedPlmn"`
	NumVectors  int               `json:"numVectors"`
	// RAND||AUTS when resynchronising after a synch failure
	ResyncInfo []byte `json:"resyncInfo,omitempty"`
}

func (*AuthInfoRequest) MessageType() MessageType { return S6aAuthInfoRequest }
func (*AuthInfoRequest) Destination() TaskId      { return TaskS6a }
func (m *AuthInfoRequest) TaskKey() int64         { return m.UeId }

type EutranVector struct {
	Rand  []byte `json:"rand"`
	Xres  []byte `json:"xres"`
	Autn  []byte `json:"autn"`
	Kasme []byte `json:"kasme"`
}

type AuthInfoAnswer struct {
	UeId    int64          `json:"mmeUeS1apId"`
	Imsi    string         `json:"imsi"`
	Result  uint32         `json:"result"`
	Vectors []EutranVector `json:"vectors,omitempty"`
}

func (*AuthInfoAnswer) MessageType() MessageType { return S6aAuthInfoAnswer }
func (*AuthInfoAnswer) Destination() TaskId      { return TaskMme }
func (m *AuthInfoAnswer) TaskKey() int64         { return m.UeId }

type PurgeRequest struct {
	UeId int64  `json:"mmeUeS1apId"`
	Imsi string `json:"imsi"`
}

func (*PurgeRequest) MessageType() MessageType { return S6aPurgeRequest }
func (*PurgeRequest) Destination() TaskId      { return TaskS6a }
func (m *PurgeRequest) TaskKey() int64         { return m.UeId }

type PurgeAnswer struct {
	UeId   int64  `json:"mmeUeS1apId"`
	Imsi   string `json:"imsi"`
	Result uint32 `json:"result"`
}

func (*PurgeAnswer) MessageType() MessageType { return S6aPurgeAnswer }
func (*PurgeAnswer) Destination() TaskId      { return TaskMme }
func (m *PurgeAnswer) TaskKey() int64         { return m.UeId }

var inbound = map[MessageType]func() Message{
	S1apInitialUeMessage:         func() Message { return &InitialUeMessage{} },
	S1apUplinkNasTransport:       func() Message { return &UplinkNasTransport{} },
	S1apNasNonDeliveryIndication: func() Message { return &NasNonDeliveryIndication{} },
	S1apUeContextReleaseRequest:  func() Message { return &UeContextReleaseRequest{} },
	S1apUeContextReleaseComplete: func() Message { return &UeContextReleaseComplete{} },
	S11CreateSessionResponse:     func() Message { return &CreateSessionResponse{} },
	S11DeleteSessionResponse:     func() Message { return &DeleteSessionResponse{} },
	S6aAuthInfoAnswer:            func() Message { return &AuthInfoAnswer{} },
	S6aPurgeAnswer:               func() Message { return &PurgeAnswer{} },
}
