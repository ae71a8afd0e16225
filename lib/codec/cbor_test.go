// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type adminRequest struct {
	Action string            `cbor:"action"`
	Fields map[string]string `cbor:"fields,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	request := adminRequest{
		Action: "features.set",
		Fields: map[string]string{"file_upload": "true", "file_delete": "false", "file_rename": "true"},
	}

	first, err := Marshal(request)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for attempt := 0; attempt < 20; attempt++ {
		again, err := Marshal(request)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs between calls: %x != %x", first, again)
		}
	}
}

func TestStreamRoundtrip(t *testing.T) {
	requests := []adminRequest{
		{Action: "features.get"},
		{Action: "status"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, request := range requests {
		if err := encoder.Encode(request); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for index, want := range requests {
		var got adminRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", index, err)
		}
		if got.Action != want.Action {
			t.Errorf("request %d action = %q, want %q", index, got.Action, want.Action)
		}
	}
}

func TestUntypedMapsUseStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"sessions": 3, "nested": map[string]any{"ok": true}})
	if err != nil {
		t.Fatal(err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if _, ok := top["nested"].(map[string]any); !ok {
		t.Errorf("nested value is %T, want map[string]any", top["nested"])
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	type envelope struct {
		OK   bool       `cbor:"ok"`
		Data RawMessage `cbor:"data"`
	}
	inner, err := Marshal(map[string]bool{"file_upload": true})
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(envelope{OK: true, Data: inner})
	if err != nil {
		t.Fatal(err)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	var flags map[string]bool
	if err := Unmarshal(decoded.Data, &flags); err != nil {
		t.Fatal(err)
	}
	if !flags["file_upload"] {
		t.Errorf("flags = %v", flags)
	}
}

func TestUnmarshalStrict(t *testing.T) {
	type flagsPatch struct {
		Upload *bool `json:"file_upload,omitempty"`
	}

	good, err := Marshal(map[string]any{"file_upload": true})
	if err != nil {
		t.Fatal(err)
	}
	var patch flagsPatch
	if err := UnmarshalStrict(good, &patch); err != nil {
		t.Fatalf("UnmarshalStrict(valid) = %v", err)
	}
	if patch.Upload == nil || !*patch.Upload {
		t.Errorf("patch = %+v", patch)
	}

	misspelled, err := Marshal(map[string]any{"file_uplaod": true})
	if err != nil {
		t.Fatal(err)
	}
	if err := UnmarshalStrict(misspelled, &flagsPatch{}); err == nil {
		t.Error("UnmarshalStrict accepted an undeclared field")
	}
	if err := Unmarshal(misspelled, &flagsPatch{}); err != nil {
		t.Errorf("Unmarshal should skip undeclared fields: %v", err)
	}

	// {"file_upload": true, "file_upload": false}, written by hand
	// because no encoder emits duplicate keys.
	duplicate := []byte{0xa2,
		0x6b, 'f', 'i', 'l', 'e', '_', 'u', 'p', 'l', 'o', 'a', 'd', 0xf5,
		0x6b, 'f', 'i', 'l', 'e', '_', 'u', 'p', 'l', 'o', 'a', 'd', 0xf4,
	}
	if err := UnmarshalStrict(duplicate, &flagsPatch{}); err == nil {
		t.Error("UnmarshalStrict accepted a duplicate key")
	}
}

func TestDecodeLimits(t *testing.T) {
	wide := make(map[string]int, maxMapPairs+1)
	for index := 0; index <= maxMapPairs; index++ {
		wide[string(rune('a'+index%26))+string(rune('a'+index/26))] = index
	}
	data, err := Marshal(wide)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]int
	if err := Unmarshal(data, &decoded); err == nil {
		t.Errorf("decoded a map of %d pairs, want a limit error", len(wide))
	}
}
