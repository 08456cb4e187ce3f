// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
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

// SendPurgeRequest tells the HSS the MME dropped the subscriber's context.
func SendPurgeRequest(mme *context.MmeContext, ue *context.UeContext) error {
	imsi, ok := ue.Emm.Imsi.Get()
	if !ok {
		return fmt.Errorf("no imsi for %s", ue)
	}
	ue.Log.Infoln("send Purge UE Request")
	return send(mme, &itti.PurgeRequest{UeId: ue.UeId, Imsi: imsi})
}
