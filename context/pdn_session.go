// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package context

type PdnSessionState string

const (
	PdnSessionCreating PdnSessionState = "CREATING"
	PdnSessionActive   PdnSessionState = "ACTIVE"
	PdnSessionDeleting PdnSessionState = "DELETING"
)

// PdnSession is the MME view of one PDN connection, keyed by its default
// EPS bearer identity. Bearer signalling itself belongs to the gateway.
type PdnSession struct {
	Ebi     uint8           `json:"ebi"`
	Apn     string          `json:"apn"`
	PdnType uint8           `json:"pdnType"`
	Address string          `json:"address,omitempty"`
	SgwTeid uint32          `json:"sgwTeid"`
	State   PdnSessionState `json:"state"`
}

func NewPdnSession(ebi uint8, apn string) *PdnSession {
	return &PdnSession{Ebi: ebi, Apn: apn, State: PdnSessionCreating}
}

func (s *PdnSession) IsActive() bool {
	return s.State == PdnSessionActive
}
