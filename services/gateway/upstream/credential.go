// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
)

// minMlockKB is the mlock limit below which memguard allocations are
// likely to fail and the credential falls back to plain memory.
const minMlockKB = 64

var (
	secureMemOnce sync.Once
	mlockOK       bool
	mlockLimitKB  int64
)

// initSecureMemory initializes memguard once and records whether the
// kernel's mlock limit supports locked allocations.
func initSecureMemory() {
	secureMemOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockOK, mlockLimitKB = checkMlockLimit()
	})
}

// checkMlockLimit queries RLIMIT_MEMLOCK. Returns sufficiency and the
// current limit in KB (-1 when unlimited or undeterminable).
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		// Can't tell; let memguard try.
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockKB, limitKB
}

// Credential holds the upstream service token. When the system's
// mlock limit permits, the token lives in a memguard enclave
// (encrypted at rest in memory, wiped on process signals); otherwise
// it degrades to plain memory with a logged warning.
type Credential struct {
	enclave  *memguard.Enclave
	insecure string
}

// NewCredential seals token. An empty token yields a credential whose
// Authorize is a no-op, for upstreams without authentication.
func NewCredential(token string, logger *logging.Logger) *Credential {
	if token == "" {
		return &Credential{}
	}
	initSecureMemory()
	if !mlockOK {
		if logger != nil {
			logger.Warn("mlock limit insufficient, upstream token held in plain memory",
				"mlock_limit_kb", mlockLimitKB,
				"required_kb", minMlockKB)
		}
		return &Credential{insecure: token}
	}
	return &Credential{enclave: memguard.NewEnclave([]byte(token))}
}

// Authorize stamps the bearer token on req. No-op for an empty
// credential.
func (c *Credential) Authorize(req *http.Request) error {
	switch {
	case c.enclave != nil:
		buf, err := c.enclave.Open()
		if err != nil {
			return fmt.Errorf("open credential enclave: %w", err)
		}
		defer buf.Destroy()
		// string(Bytes()) copies; the locked buffer is wiped on
		// Destroy while the header keeps its own copy.
		req.Header.Set("Authorization", "Bearer "+string(buf.Bytes()))
	case c.insecure != "":
		req.Header.Set("Authorization", "Bearer "+c.insecure)
	}
	return nil
}

// Empty reports whether the credential carries no token.
func (c *Credential) Empty() bool {
	return c.enclave == nil && c.insecure == ""
}
