package jsonrpc

import "testing"

func TestClassify(t *testing.T) {
	cases := map[string]MessageKind{
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`:         KindRequest,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`: KindNotification,
		`{"jsonrpc":"2.0","id":1,"result":{}}`:                   KindResponse,
		`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"x"}}`: KindResponse,
		`not json`: KindInvalid,
	}

	for raw, want := range cases {
		if got := Classify([]byte(raw)); got != want {
			t.Errorf("Classify(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestIsBatch(t *testing.T) {
	if !IsBatch([]byte("  [1,2,3]")) {
		t.Error("expected batch")
	}
	if IsBatch([]byte(`{"a":1}`)) {
		t.Error("expected non-batch")
	}
}

func TestEncodeDecodeID(t *testing.T) {
	raw := EncodeID(42)
	id, ok := DecodeID(raw)
	if !ok || id != 42 {
		t.Fatalf("round-trip failed: id=%d ok=%v", id, ok)
	}

	if _, ok := DecodeID(nil); ok {
		t.Error("expected false for empty raw")
	}
	if _, ok := DecodeID([]byte(`"string-id"`)); ok {
		t.Error("expected false for non-numeric id")
	}
}
