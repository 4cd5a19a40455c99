// Copyright 2025 Tom Barlow
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

package session

import "sync"

// The certificate bundle path is process-wide configuration consumed by
// HTTP sessions when they first enable TLS verification. An empty path
// means the system default trust store. Sessions read it through an
// injectable source func so TLS setup stays testable.

var (
	certMu         sync.RWMutex
	certBundlePath string
)

// SetCertificateBundlePath sets the process-wide certificate bundle path.
func SetCertificateBundlePath(path string) {
	certMu.Lock()
	defer certMu.Unlock()
	certBundlePath = path
}

// CertificateBundlePath returns the process-wide certificate bundle path,
// or "" when the system default trust store should be used.
func CertificateBundlePath() string {
	certMu.RLock()
	defer certMu.RUnlock()
	return certBundlePath
}
