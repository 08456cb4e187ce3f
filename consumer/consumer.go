// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

// Package consumer issues the requests the MME makes to the HSS (S6a) and to
// the serving gateway (S11). Answers come back through the ITTI bus and are
// handled on the task loop.
package consumer

import (
	ctxt "context"
	"fmt"
	"time"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
)

const requestTimeout = 5 * time.Second

func send(mme *context.MmeContext, msg itti.Message) error {
	if mme.Bus == nil {
		return fmt.Errorf("no itti bus for %s", msg.MessageType())
	}
	ctx, cancel := ctxt.WithTimeout(ctxt.Background(), requestTimeout)
	defer cancel()
	if err := mme.Bus.Send(ctx, msg); err != nil {
		logger.ConsumerLog.Errorf("send %s to %s failed: %v", msg.MessageType(), msg.Destination(), err)
		return fmt.Errorf("send %s: %w", msg.MessageType(), err)
	}
	logger.ConsumerLog.Debugf("sent %s to %s for ue %d", msg.MessageType(), msg.Destination(), msg.TaskKey())
	return nil
}
