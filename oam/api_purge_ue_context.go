// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2022 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package oam

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	mme_message "github.com/omec-project/mme/handler/message"
	"github.com/omec-project/mme/logger"
)

// HTTPPurgeUEContext detaches the UE from the network side. The UE is not
// asked to reattach.
func (a *Api) HTTPPurgeUEContext(c *gin.Context) {
	setCorsHeader(c)

	imsi, _ := c.Params.Get("imsi")
	ue, ok := a.mme.UeContextByImsi(imsi)
	if !ok {
		logger.OamLog.Errorf("no ue found for imsi %s", imsi)
		c.JSON(http.StatusNotFound, nil)
		return
	}

	req := &mme_message.NetworkDetachRequest{UeId: ue.UeId, ResponseChan: make(chan error, 1)}
	if !a.mme.Submit(req) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"cause": errNotQueued.Error()})
		return
	}
	select {
	case err := <-req.ResponseChan:
		if err != nil {
			logger.OamLog.Errorf("purge %s: %v", imsi, err)
			c.JSON(http.StatusInternalServerError, gin.H{"cause": err.Error()})
			return
		}
		c.JSON(http.StatusOK, nil)
	case <-time.After(a.timeout):
		c.JSON(http.StatusGatewayTimeout, nil)
	}
}
