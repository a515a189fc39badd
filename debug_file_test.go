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
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Session log tests share package-level state, so no t.Parallel here.

func TestSessionLogLifecycle(t *testing.T) {
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() {
		_ = os.Chdir(origDir)
	}()

	path, err := InitSessionLog()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "sphero_"))
	assert.Equal(t, path, GetSessionLogPath())

	debugf("hello from the test")

	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Sphero Debug Session Log")
	assert.Contains(t, string(content), "hello from the test")
	assert.Contains(t, string(content), "Session ended")
}

func TestSessionLogWireDumps(t *testing.T) {
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() {
		_ = os.Chdir(origDir)
	}()

	path, err := InitSessionLog()
	require.NoError(t, err)

	cmd, err := EncodeCommand(0x00, 0x01, 0x52, nil)
	require.NoError(t, err)
	debugFrame("->", cmd)
	debugFrame("<-", []byte{0xFF, 0xFF, 0x00, 0x52, 0x01, 0xAC})

	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-> FF FF 00 01 52 01 AB")
	assert.Contains(t, string(content), "<- FF FF 00 52 01 AC")
	assert.Contains(t, string(content), "Console Debug:")
}

func TestCloseSessionLogWithoutInit(t *testing.T) {
	assert.NoError(t, CloseSessionLog())
}

func TestSetDebugEnabled(t *testing.T) {
	orig := debugEnabled
	defer SetDebugEnabled(orig)

	SetDebugEnabled(true)
	assert.True(t, debugEnabled)
	SetDebugEnabled(false)
	assert.False(t, debugEnabled)
}
