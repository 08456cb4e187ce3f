// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package util

import (
	"os"
	"path/filepath"
)

// MmeLogPath receives TLS key material of the OAM server.
var MmeLogPath = filepath.Join(os.TempDir(), "mmesslkey.log")
