// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package consumer

import (
	"fmt"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/itti"
)

// SendCreateSessionRequest opens the PDN connection of session. The ESM PDN
// connectivity request the UE sent is passed through untouched.
func SendCreateSessionRequest(mme *context.MmeContext, ue *context.UeContext, session *context.PdnSession,
	esmContainer []byte,
) error {
	imsi, ok := ue.Emm.Imsi.Get()
	if !ok {
		return fmt.Errorf("no imsi for %s", ue)
	}
	ue.Log.Infof("send Create Session Request, ebi %d", session.Ebi)
	return send(mme, &itti.CreateSessionRequest{
		UeId:         ue.UeId,
		Imsi:         imsi,
		Ebi:          session.Ebi,
		Apn:          session.Apn,
		PdnType:      session.PdnType,
		ServingPlmn:  ue.Tai.PlmnId,
		Tai:          ue.Tai,
		Ecgi:         ue.Ecgi,
		EsmContainer: esmContainer,
	})
}

func SendDeleteSessionRequest(mme *context.MmeContext, ue *context.UeContext, session *context.PdnSession) error {
	ue.Log.Infof("send Delete Session Request, ebi %d", session.Ebi)
	return send(mme, &itti.DeleteSessionRequest{
		UeId:    ue.UeId,
		Imsi:    ue.Emm.Imsi.Value(),
		Ebi:     session.Ebi,
		SgwTeid: session.SgwTeid,
	})
}
