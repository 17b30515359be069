// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import "github.com/sirupsen/logrus"

// Logger is the structured logger used for allocator diagnostics: mapping
// failures, overflow-path allocations, and leak detection at pool destroy.
// The host process may replace it before creating any pool.
var Logger = logrus.StandardLogger().WithField("component", "iobufpool")

// SetLogger replaces the package logger. Not safe to call concurrently
// with pool operations.
func SetLogger(entry *logrus.Entry) {
	if entry != nil {
		Logger = entry
	}
}
