// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"sync"

	"github.com/solisnet/solisd/util/chainhash"
)

// sigCacheEntry represents an entry in the SigCache. Entries within the
// SigCache are keyed according to the sigHash of the signature. In the
// scenario of a cache-collision (due to incomplete sigHash uniqueness across
// transactions), the full signature and public key are compared in order to
// determine an actual cache hit.
type sigCacheEntry struct {
	sig    []byte
	pubKey []byte
}

// SigCache implements a Schnorr signature verification cache with a
// randomized entry eviction policy. Only valid signatures will be added to
// the cache. The benefit of SigCache is two fold. Firstly, usage of SigCache
// mitigates a DoS attack wherein an attacker causes a victim's client to hang
// due to worst-case behavior triggered while processing attacker crafted
// invalid transactions. Secondly, usage of the SigCache introduces a
// signature verification optimization which speeds up the validation of
// transactions within a block, if they've already been seen and verified
// within the mempool.
type SigCache struct {
	validSigs  map[chainhash.Hash]sigCacheEntry
	maxEntries uint
	sync.RWMutex
}

// NewSigCache creates and initializes a new instance of SigCache. Its sole
// parameter 'maxEntries' represents the maximum number of entries allowed to
// exist in the SigCache at any particular moment. Random entries are evicted
// to make room for new entries that would cause the number of entries in the
// cache to exceed the max.
func NewSigCache(maxEntries uint) *SigCache {
	return &SigCache{
		validSigs:  make(map[chainhash.Hash]sigCacheEntry, maxEntries),
		maxEntries: maxEntries,
	}
}

// Exists returns true if an existing entry of 'sig' over 'sigHash' for public
// key 'pubKey' is found within the SigCache. Otherwise, false is returned.
//
// NOTE: This function is safe for concurrent access. Readers won't be blocked
// unless there exists a writer, adding an entry to the SigCache.
func (s *SigCache) Exists(sigHash chainhash.Hash, sig, pubKey []byte) bool {
	s.RLock()
	entry, ok := s.validSigs[sigHash]
	s.RUnlock()

	return ok && bytes.Equal(entry.pubKey, pubKey) &&
		bytes.Equal(entry.sig, sig)
}

// Add adds an entry for a signature over 'sigHash' under public key 'pubKey'
// to the signature cache. In the event that the SigCache is 'full', an
// existing entry is randomly chosen to be evicted in order to make space for
// the new entry.
//
// NOTE: This function is safe for concurrent access. Writers will block
// simultaneous readers until function execution has concluded.
func (s *SigCache) Add(sigHash chainhash.Hash, sig, pubKey []byte) {
	s.Lock()
	defer s.Unlock()

	if s.maxEntries == 0 {
		return
	}

	// If adding this new entry will put us over the max number of allowed
	// entries, then evict an entry. Go's map iteration order is
	// pseudo-random, so simply deleting the first key encountered is a
	// sufficiently cheap approximation of random eviction.
	if uint(len(s.validSigs)+1) > s.maxEntries {
		for sigEntry := range s.validSigs {
			delete(s.validSigs, sigEntry)
			break
		}
	}

	sigCopy := make([]byte, len(sig))
	copy(sigCopy, sig)
	pubKeyCopy := make([]byte, len(pubKey))
	copy(pubKeyCopy, pubKey)
	s.validSigs[sigHash] = sigCacheEntry{sigCopy, pubKeyCopy}
}
