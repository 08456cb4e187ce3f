// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package oam

import (
	ctxt "context"
	"time"

	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/metrics"
)

// PublishUeStats exports the number of UE contexts per EMM state every
// interval until ctx is done.
func (a *Api) PublishUeStats(ctx ctxt.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.publishUeStats()
		}
	}
}

func (a *Api) publishUeStats() {
	counts, err := a.countByState()
	if err != nil {
		logger.OamLog.Warnf("ue stats: %v", err)
		return
	}
	for state, n := range counts {
		metrics.SetUeContextStats(state, n)
	}
}
