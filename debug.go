// Copyright 2026 The go-sphero Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sphero

import (
	"fmt"
	"os"
	"time"
)

// debugEnabled controls whether debug logging is active
var debugEnabled = false

func init() {
	if os.Getenv("SPHERO_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// debugf prints debug information.
// Always writes to the session log file (if initialized) with timestamp.
// Only prints to console when debug mode is enabled.
func debugf(format string, args ...any) {
	if !debugEnabled && sessionLogWriter == nil {
		return
	}
	message := fmt.Sprintf(format, args...)

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}

	if debugEnabled {
		_, _ = fmt.Fprintf(os.Stderr, "DEBUG: %s\n", message)
	}
}

// debugFrame logs raw wire bytes as spaced hex with a direction marker,
// e.g. "-> FF FF 00 01 52 01 AB". Guarded here so callers on the hot
// path pay nothing when logging is off.
func debugFrame(dir string, data []byte) {
	if !debugEnabled && sessionLogWriter == nil {
		return
	}
	debugf("%s % X", dir, data)
}

// SetDebugEnabled allows programmatic control of debug logging.
// Useful for testing or application-controlled debug modes.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}
