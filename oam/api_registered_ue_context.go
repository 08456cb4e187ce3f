// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package oam

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omec-project/mme/context"
	mme_message "github.com/omec-project/mme/handler/message"
	"github.com/omec-project/mme/logger"
)

const defaultQueryTimeout = 3 * time.Second

var errNotQueued = errors.New("task loop not running")

// Api serves OAM requests. UE contexts are only read on the task loop shard
// that owns them.
type Api struct {
	mme     *context.MmeContext
	timeout time.Duration
}

func NewApi(mme *context.MmeContext) *Api {
	return &Api{mme: mme, timeout: defaultQueryTimeout}
}

func setCorsHeader(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
}

// query reads one UE context through the task loop. A nil snapshot means
// the UE is gone.
func (a *Api) query(ueId int64) (*mme_message.UeContextSnapshot, error) {
	q := &mme_message.UeContextQuery{UeId: ueId, ResponseChan: make(chan *mme_message.UeContextSnapshot, 1)}
	if !a.mme.Submit(q) {
		return nil, errNotQueued
	}
	select {
	case s := <-q.ResponseChan:
		return s, nil
	case <-time.After(a.timeout):
		return nil, errors.New("ue context query timed out")
	}
}

// snapshots reads every UE context the MME holds.
func (a *Api) snapshots() ([]*mme_message.UeContextSnapshot, error) {
	var ids []int64
	a.mme.RangeUeContexts(func(ue *context.UeContext) bool {
		ids = append(ids, ue.UeId)
		return true
	})
	out := make([]*mme_message.UeContextSnapshot, 0, len(ids))
	for _, id := range ids {
		s, err := a.query(id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Api) HTTPRegisteredUEContext(c *gin.Context) {
	setCorsHeader(c)

	if imsi, exists := c.Params.Get("imsi"); exists {
		ue, ok := a.mme.UeContextByImsi(imsi)
		if !ok {
			logger.OamLog.Warnf("no ue context for imsi %s", imsi)
			c.JSON(http.StatusNotFound, nil)
			return
		}
		s, err := a.query(ue.UeId)
		if err != nil {
			logger.OamLog.Errorln(err)
			c.JSON(http.StatusInternalServerError, gin.H{"cause": err.Error()})
			return
		}
		if s == nil || s.EmmState != string(context.Registered) {
			c.JSON(http.StatusNotFound, nil)
			return
		}
		c.JSON(http.StatusOK, []*mme_message.UeContextSnapshot{s})
		return
	}

	all, err := a.snapshots()
	if err != nil {
		logger.OamLog.Errorln(err)
		c.JSON(http.StatusInternalServerError, gin.H{"cause": err.Error()})
		return
	}
	registered := make([]*mme_message.UeContextSnapshot, 0, len(all))
	for _, s := range all {
		if s.EmmState == string(context.Registered) {
			registered = append(registered, s)
		}
	}
	c.JSON(http.StatusOK, registered)
}

// HTTPGetActiveUes reports the number of UE contexts per EMM state.
func (a *Api) HTTPGetActiveUes(c *gin.Context) {
	setCorsHeader(c)

	counts, err := a.countByState()
	if err != nil {
		logger.OamLog.Errorln(err)
		c.JSON(http.StatusInternalServerError, gin.H{"cause": err.Error()})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (a *Api) countByState() (map[string]int, error) {
	all, err := a.snapshots()
	if err != nil {
		return nil, err
	}
	counts := map[string]int{
		string(context.Deregistered):             0,
		string(context.CommonProcedureInitiated): 0,
		string(context.Registered):               0,
		string(context.DeregistrationInitiated):  0,
	}
	for _, s := range all {
		counts[s.EmmState]++
	}
	return counts, nil
}
