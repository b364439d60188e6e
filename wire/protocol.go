// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
)

// SolisNet represents which solis network a message belongs to.
type SolisNet uint32

// Constants used to indicate the message solis network. They can also be
// used to seek to the next message when a stream's state is unknown, but
// this package does not provide that functionality since it's generally a
// better idea to simply disconnect clients that are misbehaving over TCP.
const (
	// MainNet represents the main solis network.
	MainNet SolisNet = 0xd9b4bef9

	// TestNet represents the test network.
	TestNet SolisNet = 0x0709110b

	// SimNet represents the simulation test network.
	SimNet SolisNet = 0x12141c16
)

// snStrings is a map of solis networks back to their constant names for
// pretty printing.
var snStrings = map[SolisNet]string{
	MainNet: "MainNet",
	TestNet: "TestNet",
	SimNet:  "SimNet",
}

// String returns the SolisNet in human-readable form.
func (n SolisNet) String() string {
	if s, ok := snStrings[n]; ok {
		return s
	}

	return fmt.Sprintf("Unknown SolisNet (%d)", uint32(n))
}
