// SPDX-FileCopyrightText: 2024 Intel Corporation
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/service"
	"github.com/urfave/cli/v3"
)

var MME = &service.MME{}

func main() {
	app := &cli.Command{}
	app.Name = "mme"
	logger.AppLog.Infoln(app.Name)
	app.Usage = "Mobility Management Entity"
	app.UsageText = "mme --cfg <mme_config_file.yaml>"
	app.Action = action
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     "cfg",
			Usage:    "mme config file",
			Required: true,
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.AppLog.Fatalf("MME run error: %v", err)
	}
}

func action(ctx context.Context, c *cli.Command) error {
	if err := MME.Initialize(c.String("cfg")); err != nil {
		logger.CfgLog.Errorf("%+v", err)
		return fmt.Errorf("failed to initialize")
	}

	MME.WatchConfig()

	MME.Start()

	return nil
}
