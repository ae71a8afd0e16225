// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds wb's CBOR configuration.
//
// The browser-facing surfaces (HTML, websocket frames, the /features
// stream) speak JSON. The admin socket between wbctl and a running wb
// speaks CBOR, and every encoder and decoder on that path comes from
// here so both ends agree byte for byte:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Requests are read strictly (UnmarshalStrict, NewStrictDecoder):
// duplicate keys and undeclared fields are errors. Replies are read
// leniently. Both decoders cap nesting and collection sizes, since
// admin messages are small flat maps.
//
// Types shared with JSON carry only `json` tags; fxamacker/cbor falls
// back to them when no `cbor` tag is present. Types that only ever
// cross the admin socket use `cbor` tags. Never put both on one field.
package codec
