// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txrules provides functions that help establish whether or not a
transaction abides by the consensus and non-consensus rules a node applies
before relaying it.

# Dust and Fee Per KB Calculation

Please refer to policy.go in btcd for more information about the importance of
these functions.

# Sanity and Context Checks

CheckSanity runs the context free checks a node performs on every transaction
it receives.  CheckContext additionally validates a transaction against the
outputs it spends and the height of the block it is expected to be mined in.
Signatures are not validated by either check, so both may be run on an
unsigned transaction.
*/
package txrules
