// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package util

import (
	ctxt "context"
	"fmt"
	"os"
	"time"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
)

const storeConnectTimeout = 10 * time.Second

// NewNasStateStore returns the store selected by the configuration: MongoDB
// when enableDbStore is set, memory otherwise.
func NewNasStateStore(configuration *factory.Configuration) (context.NasStateStore, error) {
	if !configuration.EnableDbStore {
		logger.UtilLog.Infoln("nas state kept in memory")
		return context.NewMemoryStore(), nil
	}
	var url, name string
	if configuration.Mongodb != nil {
		url = configuration.Mongodb.Url
		name = configuration.Mongodb.Name
	}
	ctx, cancel := ctxt.WithTimeout(ctxt.Background(), storeConnectTimeout)
	defer cancel()
	store, err := context.NewMongoStore(ctx, url, name)
	if err != nil {
		return nil, fmt.Errorf("nas state store: %w", err)
	}
	return store, nil
}

// NewBus returns the ITTI bus towards the S1AP, S11 and S6a tasks. Without
// an itti block the MME records outgoing messages in memory.
func NewBus(configuration *factory.Configuration) itti.Bus {
	if configuration.Itti == nil {
		logger.UtilLog.Warnln("itti not configured, outgoing messages stay in memory")
		return itti.NewMemoryBus()
	}
	return itti.NewKafkaBus(configuration.Itti)
}

// InitMmeContext builds the MME context for the configuration held by
// provider.
func InitMmeContext(provider *factory.ConfigProvider) (*context.MmeContext, error) {
	config := provider.Current()
	if config.Info != nil {
		logger.UtilLog.Infof("mmeconfig Info: Version[%s] Description[%s]", config.Info.Version, config.Info.Description)
	}
	configuration := config.Configuration

	store, err := NewNasStateStore(configuration)
	if err != nil {
		return nil, err
	}
	mme := context.NewMmeContext(provider, store)
	if podName := os.Getenv("HOSTNAME"); podName != "" {
		mme.NfId = podName
	}
	mme.Bus = NewBus(configuration)

	if len(mme.ServedGummeiList) == 0 {
		logger.UtilLog.Warnln("no served gummei configured, guti allocation will fail")
	}
	if len(mme.SupportTaiList) == 0 {
		logger.UtilLog.Warnln("no supported tai configured")
	}
	logger.UtilLog.Infof("mme %s (%s): gummeis %v, ciphering %v, integrity %v", mme.Name, mme.NfId,
		mme.ServedGummeiList, mme.CipheringOrder(), mme.IntegrityOrder())
	return mme, nil
}
