// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"fmt"
	"time"

	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/nas/nasMessage"
)

const (
	maxNumOfTAI            int   = 16
	maxValueOfMmeUeS1apId  int64 = 4294967295
	maxValueOfMTmsi        int64 = 4294967295
	MaxNumOfPdnSessions    int   = 11
	MaxNumOfServedGummeis  int   = 8
	DefaultEpsBearerIdBase uint8 = 5
)

// timers at MME side, defined in TS 24.301 table 10.2.2
const (
	TimeT3422 time.Duration = 6 * time.Second
	TimeT3450 time.Duration = 6 * time.Second
	TimeT3460 time.Duration = 6 * time.Second
	TimeT3470 time.Duration = 6 * time.Second
	// retransmissions before the procedure is aborted
	DefaultMaxRetryTimes int = 4
)

type EcmState string

const (
	EcmIdle      EcmState = "ECM_IDLE"
	EcmConnected EcmState = "ECM_CONNECTED"
)

// S1AP cause carried with a UE context release (TS 36.413 9.2.1.3).
type S1apCause uint8

const (
	S1apCauseNasNormalRelease S1apCause = iota
	S1apCauseNasDetach
	S1apCauseRadioNetworkUnspecified
	S1apCauseUserInactivity
	S1apCauseSctpShutdownOrReset
	S1apCauseImplicitDetach
)

func (c S1apCause) String() string {
	switch c {
	case S1apCauseNasNormalRelease:
		return "nas-normal-release"
	case S1apCauseNasDetach:
		return "nas-detach"
	case S1apCauseRadioNetworkUnspecified:
		return "radio-network-unspecified"
	case S1apCauseUserInactivity:
		return "user-inactivity"
	case S1apCauseSctpShutdownOrReset:
		return "sctp-shutdown-or-reset"
	case S1apCauseImplicitDetach:
		return "implicit-detach"
	}
	return fmt.Sprintf("s1ap-cause-%d", uint8(c))
}

// ParseS1apCause maps the cause string of an S1AP message back to a cause.
// Unknown strings map to radio-network-unspecified.
func ParseS1apCause(s string) S1apCause {
	for c := S1apCauseNasNormalRelease; c <= S1apCauseImplicitDetach; c++ {
		if c.String() == s {
			return c
		}
	}
	return S1apCauseRadioNetworkUnspecified
}

// Ecgi is the E-UTRAN cell global identifier.
type Ecgi = itti.Ecgi

// Gummei is a served globally unique MME identifier.
type Gummei struct {
	PlmnId     nasMessage.PlmnId `json:"plmnId"`
	MmeGroupId uint16            `json:"mmeGroupId"`
	MmeCode    uint8             `json:"mmeCode"`
}

// Owns reports whether guti was allocated under this GUMMEI.
func (g Gummei) Owns(guti nasMessage.Guti) bool {
	return g.PlmnId == guti.PlmnId && g.MmeGroupId == guti.MmeGroupId && g.MmeCode == guti.MmeCode
}
