// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/nas/security"
	"github.com/omec-project/util/idgenerator"
)

// MmeContext is the state shared by every task loop shard: configuration,
// the UE table and its lookup indexes, identifier pools, timers and the NAS
// state store. It is created once by the service and passed explicitly.
type MmeContext struct {
	Name             string
	NfId             string
	ServedGummeiList []Gummei
	SupportTaiList   nasMessage.TaiList

	UePool   sync.Map // map[int64]*UeContext, MME UE S1AP id as key
	ImsiPool sync.Map // map[string]int64
	GutiPool sync.Map // map[string]int64, Guti.String() as key
	TmsiPool sync.Map // map[uint32]int64
	// IMSI per UE id, readable from any shard
	imsiByUe sync.Map // map[int64]string
	// MME UE S1AP ids handed out for queued connections without a context yet
	reserved sync.Map // map[int64]struct{}

	ueIdGenerator *idgenerator.IDGenerator
	tmsiGenerator *idgenerator.IDGenerator

	Timers *TimerManager
	Store  NasStateStore
	Config *factory.ConfigProvider
	// towards the S1AP, S11 and S6a tasks
	Bus itti.Bus

	// UE ids changed or removed since the last PutMmeNasState
	dirty   sync.Map
	removed sync.Map

	submitMu sync.RWMutex
	submit   func(TaskMessage) bool
}

// NewMmeContext builds an MME context from the current configuration
// snapshot. A nil store keeps NAS state in memory only. The bus starts as an
// in-memory recorder until the service installs the real one.
func NewMmeContext(provider *factory.ConfigProvider, store NasStateStore) *MmeContext {
	if provider == nil {
		provider = factory.DefaultProvider()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	c := &MmeContext{
		NfId:          uuid.New().String(),
		ueIdGenerator: idgenerator.NewGenerator(1, maxValueOfMmeUeS1apId),
		tmsiGenerator: idgenerator.NewGenerator(1, maxValueOfMTmsi),
		Store:         store,
		Config:        provider,
		Bus:           itti.NewMemoryBus(),
	}
	c.Timers = NewTimerManager(func(e TimerExpiry) { c.Submit(e) })
	c.applyConfiguration(provider.Configuration())
	return c
}

func (c *MmeContext) applyConfiguration(cfg *factory.Configuration) {
	c.Name = cfg.MmeName
	if c.Name == "" {
		c.Name = "mme"
	}
	c.ServedGummeiList = c.ServedGummeiList[:0]
	for _, g := range cfg.ServedGummeiList {
		if len(c.ServedGummeiList) == MaxNumOfServedGummeis {
			logger.CtxLog.Warnf("served gummei list truncated to %d entries", MaxNumOfServedGummeis)
			break
		}
		c.ServedGummeiList = append(c.ServedGummeiList, Gummei{
			PlmnId:     nasMessage.PlmnId{Mcc: g.PlmnId.Mcc, Mnc: g.PlmnId.Mnc},
			MmeGroupId: g.MmeGroupId,
			MmeCode:    g.MmeCode,
		})
	}
	c.SupportTaiList = c.SupportTaiList[:0]
	for _, t := range cfg.SupportTaiList {
		if len(c.SupportTaiList) == maxNumOfTAI {
			logger.CtxLog.Warnf("supported tai list truncated to %d entries", maxNumOfTAI)
			break
		}
		c.SupportTaiList = append(c.SupportTaiList, nasMessage.Tai{
			PlmnId: nasMessage.PlmnId{Mcc: t.PlmnId.Mcc, Mnc: t.PlmnId.Mnc},
			Tac:    t.Tac,
		})
	}
}

// Reload refreshes the identity lists after a configuration change.
func (c *MmeContext) Reload() {
	c.applyConfiguration(c.Config.Configuration())
}

// Configuration returns the active configuration snapshot.
func (c *MmeContext) Configuration() *factory.Configuration {
	return c.Config.Configuration()
}

// SetSubmitter wires the task loop that timer expiries and collaborator
// answers are posted to.
func (c *MmeContext) SetSubmitter(submit func(TaskMessage) bool) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()
	c.submit = submit
}

func (c *MmeContext) Submit(msg TaskMessage) bool {
	c.submitMu.RLock()
	submit := c.submit
	c.submitMu.RUnlock()
	if submit == nil {
		logger.CtxLog.Debugf("no task loop, dropping %T for ue %d", msg, msg.TaskKey())
		return false
	}
	return submit(msg)
}

// NewUeContext allocates an MME UE S1AP id and registers a fresh UE context.
func (c *MmeContext) NewUeContext(enbUeS1apId int64, tai nasMessage.Tai, ecgi Ecgi) (*UeContext, error) {
	id, err := c.ueIdGenerator.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocate mme ue s1ap id: %w", err)
	}
	return c.registerUeContext(id, enbUeS1apId, tai, ecgi), nil
}

// ReserveUeId allocates an MME UE S1AP id for a connection that has no UE
// context yet, so it can be queued on the shard the new context will use.
func (c *MmeContext) ReserveUeId() (int64, error) {
	id, err := c.ueIdGenerator.Allocate()
	if err != nil {
		return 0, fmt.Errorf("allocate mme ue s1ap id: %w", err)
	}
	c.reserved.Store(id, struct{}{})
	return id, nil
}

// ClaimUeId registers a fresh UE context under an id taken by ReserveUeId.
func (c *MmeContext) ClaimUeId(id, enbUeS1apId int64, tai nasMessage.Tai, ecgi Ecgi) (*UeContext, bool) {
	if _, ok := c.reserved.LoadAndDelete(id); !ok {
		return nil, false
	}
	return c.registerUeContext(id, enbUeS1apId, tai, ecgi), true
}

// ReleaseUeId frees an id taken by ReserveUeId that no UE context was
// registered under. Ids that were not reserved are left alone.
func (c *MmeContext) ReleaseUeId(id int64) {
	if _, ok := c.reserved.LoadAndDelete(id); ok {
		c.ueIdGenerator.FreeID(id)
	}
}

func (c *MmeContext) registerUeContext(id, enbUeS1apId int64, tai nasMessage.Tai, ecgi Ecgi) *UeContext {
	ue := newUeContext(id, enbUeS1apId, tai, ecgi)
	c.UePool.Store(id, ue)
	c.MarkDirty(id)
	ue.Log.Infof("new ue context, enb ue s1ap id %d", enbUeS1apId)
	return ue
}

func (c *MmeContext) UeContextById(id int64) (*UeContext, bool) {
	if v, ok := c.UePool.Load(id); ok {
		return v.(*UeContext), true
	}
	return nil, false
}

func (c *MmeContext) UeContextByImsi(imsi string) (*UeContext, bool) {
	if v, ok := c.ImsiPool.Load(imsi); ok {
		return c.UeContextById(v.(int64))
	}
	return nil, false
}

// ImsiOf returns the IMSI bound to the UE context id. Unlike the EMM
// context it may be read from any shard.
func (c *MmeContext) ImsiOf(id int64) (string, bool) {
	if v, ok := c.imsiByUe.Load(id); ok {
		return v.(string), true
	}
	return "", false
}

func (c *MmeContext) UeContextByGuti(guti nasMessage.Guti) (*UeContext, bool) {
	if v, ok := c.GutiPool.Load(guti.String()); ok {
		return c.UeContextById(v.(int64))
	}
	return nil, false
}

func (c *MmeContext) UeContextByMTmsi(tmsi uint32) (*UeContext, bool) {
	if v, ok := c.TmsiPool.Load(tmsi); ok {
		return c.UeContextById(v.(int64))
	}
	return nil, false
}

// BindImsi records imsi for ue. If another UE context already holds it, that
// context is returned so the caller can clean it up.
func (c *MmeContext) BindImsi(ue *UeContext, imsi string) (*UeContext, bool) {
	var previous *UeContext
	if old, ok := c.UeContextByImsi(imsi); ok && old.UeId != ue.UeId {
		previous = old
	}
	ue.Emm.Imsi.Set(imsi)
	c.ImsiPool.Store(imsi, ue.UeId)
	c.imsiByUe.Store(ue.UeId, imsi)
	ue.AttachLogger(imsi)
	c.MarkDirty(ue.UeId)
	return previous, previous != nil
}

// BindGuti indexes a GUTI the UE presented. It stays invalid until the MME
// confirms it belongs to one of its GUMMEIs.
func (c *MmeContext) BindGuti(ue *UeContext, guti nasMessage.Guti) {
	if c.IsServedGuti(guti) {
		ue.Emm.Guti.Set(guti)
	} else {
		ue.Emm.Guti.SetInvalid(guti)
	}
	c.GutiPool.Store(guti.String(), ue.UeId)
	c.TmsiPool.Store(guti.MTmsi, ue.UeId)
	c.MarkDirty(ue.UeId)
}

// IsServedGuti reports whether guti was allocated by this MME.
func (c *MmeContext) IsServedGuti(guti nasMessage.Guti) bool {
	for _, g := range c.ServedGummeiList {
		if g.Owns(guti) {
			return true
		}
	}
	return false
}

// AllocateGuti assigns a new GUTI from the first served GUMMEI. The previous
// GUTI, if any, moves to OldGuti and stays indexed until it is released.
func (c *MmeContext) AllocateGuti(ue *UeContext) (nasMessage.Guti, error) {
	if len(c.ServedGummeiList) == 0 {
		return nasMessage.Guti{}, fmt.Errorf("no served gummei configured")
	}
	tmsi, err := c.tmsiGenerator.Allocate()
	if err != nil {
		return nasMessage.Guti{}, fmt.Errorf("allocate m-tmsi: %w", err)
	}
	gummei := c.ServedGummeiList[0]
	guti := nasMessage.Guti{
		PlmnId:     gummei.PlmnId,
		MmeGroupId: gummei.MmeGroupId,
		MmeCode:    gummei.MmeCode,
		MTmsi:      uint32(tmsi),
	}
	if old, ok := ue.Emm.Guti.Get(); ok {
		c.releaseOldGuti(ue)
		ue.Emm.OldGuti.Set(old)
	}
	ue.Emm.Guti.Set(guti)
	c.GutiPool.Store(guti.String(), ue.UeId)
	c.TmsiPool.Store(guti.MTmsi, ue.UeId)
	c.MarkDirty(ue.UeId)
	return guti, nil
}

// ReleaseOldGuti forgets the previous GUTI once the UE acknowledged the new one.
func (c *MmeContext) ReleaseOldGuti(ue *UeContext) {
	c.releaseOldGuti(ue)
	ue.Emm.OldGuti.Clear()
	c.MarkDirty(ue.UeId)
}

func (c *MmeContext) releaseOldGuti(ue *UeContext) {
	if !ue.Emm.OldGuti.IsPresent() {
		return
	}
	c.releaseGuti(ue.UeId, ue.Emm.OldGuti.Value())
}

func (c *MmeContext) releaseGuti(ueId int64, guti nasMessage.Guti) {
	key := guti.String()
	if v, ok := c.GutiPool.Load(key); ok && v.(int64) == ueId {
		c.GutiPool.Delete(key)
	}
	if v, ok := c.TmsiPool.Load(guti.MTmsi); ok && v.(int64) == ueId {
		c.TmsiPool.Delete(guti.MTmsi)
		if c.IsServedGuti(guti) {
			c.tmsiGenerator.FreeID(int64(guti.MTmsi))
		}
	}
}

// RemoveUeContext destroys the UE context and its EMM context: timers are
// cancelled, identifiers freed and the persisted copy scheduled for deletion.
func (c *MmeContext) RemoveUeContext(id int64) {
	ue, ok := c.UeContextById(id)
	if !ok {
		return
	}
	c.Timers.StopAll(id)
	emm := ue.Emm
	if imsi, present := emm.Imsi.Value(), emm.Imsi.IsPresent(); present {
		if v, found := c.ImsiPool.Load(imsi); found && v.(int64) == id {
			c.ImsiPool.Delete(imsi)
		}
	}
	if emm.Guti.IsPresent() {
		c.releaseGuti(id, emm.Guti.Value())
	}
	if emm.OldGuti.IsPresent() {
		c.releaseGuti(id, emm.OldGuti.Value())
	}
	emm.Clear(nil)
	c.imsiByUe.Delete(id)
	c.UePool.Delete(id)
	c.ueIdGenerator.FreeID(id)
	c.dirty.Delete(id)
	c.removed.Store(id, struct{}{})
	ue.Log.Infof("ue context removed")
}

func (c *MmeContext) RangeUeContexts(f func(ue *UeContext) bool) {
	c.UePool.Range(func(_, v interface{}) bool {
		return f(v.(*UeContext))
	})
}

// UeCount returns the number of UE contexts.
func (c *MmeContext) UeCount() int {
	n := 0
	c.UePool.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// MarkDirty schedules the UE context for the next PutMmeNasState.
func (c *MmeContext) MarkDirty(id int64) {
	c.dirty.Store(id, struct{}{})
}

// CipheringOrder returns the configured EEA preference, EEA2 EEA1 EEA0 by default.
func (c *MmeContext) CipheringOrder() []uint8 {
	if sec := c.Configuration().Security; sec != nil && len(sec.CipheringOrder) > 0 {
		return parseAlgorithms(sec.CipheringOrder, "EEA")
	}
	return []uint8{security.AlgCiphering128NEA2, security.AlgCiphering128NEA1, security.AlgCiphering128NEA0}
}

// IntegrityOrder returns the configured EIA preference, EIA2 EIA1 by default.
func (c *MmeContext) IntegrityOrder() []uint8 {
	if sec := c.Configuration().Security; sec != nil && len(sec.IntegrityOrder) > 0 {
		return parseAlgorithms(sec.IntegrityOrder, "EIA")
	}
	return []uint8{security.AlgIntegrity128NIA2, security.AlgIntegrity128NIA1}
}

func parseAlgorithms(names []string, prefix string) []uint8 {
	out := make([]uint8, 0, len(names))
	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		switch strings.TrimPrefix(name, prefix) {
		case "0":
			out = append(out, 0)
		case "1":
			out = append(out, 1)
		case "2":
			out = append(out, 2)
		case "3":
			out = append(out, 3)
		default:
			logger.CtxLog.Warnf("unknown algorithm %q in %s order", name, prefix)
		}
	}
	return out
}
