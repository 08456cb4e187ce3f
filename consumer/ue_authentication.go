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

// SendAuthenticationInfoRequest asks the HSS for one E-UTRAN vector. After a
// synch failure resyncInfo carries RAND||AUTS.
func SendAuthenticationInfoRequest(mme *context.MmeContext, ue *context.UeContext, resyncInfo []byte) error {
	imsi, ok := ue.Emm.Imsi.Get()
	if !ok {
		return fmt.Errorf("no imsi for %s", ue)
	}
	// take the visited PLMN from the TAI if received
	plmnId := ue.Tai.PlmnId
	if plmnId.Mcc == "" && len(mme.ServedGummeiList) > 0 {
		ue.Log.Warnf("Tai is not received, visited Plmn [Mcc: %v Mnc: %v] is taken from Gummei List",
			mme.ServedGummeiList[0].PlmnId.Mcc, mme.ServedGummeiList[0].PlmnId.Mnc)
		plmnId = mme.ServedGummeiList[0].PlmnId
	}
	ue.Log.Infof("send Authentication Information Request (resync: %t)", resyncInfo != nil)
	return send(mme, &itti.AuthInfoRequest{
		UeId:        ue.UeId,
		Imsi:        imsi,
		VisitedPlmn: plmnId,
		NumVectors:  1,
		ResyncInfo:  resyncInfo,
	})
}
