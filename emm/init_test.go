// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package emm_test

import (
	"fmt"
	"testing"

	"github.com/omec-project/mme/emm"
	"github.com/omec-project/util/fsm"
	"github.com/stretchr/testify/require"
)

func TestEmmFSM(t *testing.T) {
	require.NotNil(t, emm.EmmFSM)
	if err := fsm.ExportDot(emm.EmmFSM, "emm"); err != nil {
		fmt.Printf("fsm export data return error: %+v", err)
	}
}
