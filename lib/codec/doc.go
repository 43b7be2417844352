// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the deterministic CBOR encoding used by
// archive manifests.
//
// Encoding is RFC 8949 Core Deterministic: the same manifest always
// encodes to the same bytes regardless of map iteration order or
// integer width. Decoding accepts standard CBOR and ignores unknown
// fields.
package codec
