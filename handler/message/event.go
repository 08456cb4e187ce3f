// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

// Package message holds the task loop requests raised by OAM. Each carries a
// response channel so the caller can wait for the shard that owns the UE.
package message

import (
	"github.com/omec-project/mme/nas/nasMessage"
)

// NetworkDetachRequest starts a network initiated detach of one UE.
type NetworkDetachRequest struct {
	UeId             int64
	ReattachRequired bool
	ResponseChan     chan error
}

func (r *NetworkDetachRequest) TaskKey() int64 { return r.UeId }

// UeContextQuery reads a snapshot of one UE context.
type UeContextQuery struct {
	UeId         int64
	ResponseChan chan *UeContextSnapshot
}

func (q *UeContextQuery) TaskKey() int64 { return q.UeId }

// UeContextSnapshot is a copy of the fields OAM reports for one UE. It is
// nil on the response channel when the UE no longer exists.
type UeContextSnapshot struct {
	UeId     int64              `json:"mmeUeS1apId"`
	Imsi     string             `json:"imsi"`
	EmmState string             `json:"emmState"`
	EcmState string             `json:"ecmState"`
	Guti     string             `json:"guti,omitempty"`
	Tai      nasMessage.Tai     `json:"tai"`
	TaiList  nasMessage.TaiList `json:"taiList,omitempty"`
	PdnCount int                `json:"pdnCount"`
}
