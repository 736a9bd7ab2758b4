// ABOUTME: Tests for the row model, kind parsing and blob discovery.
// ABOUTME: Covers the malformed-blob fallback and remainder-kind derivation.

package rows

import (
	"reflect"
	"testing"

	"github.com/2389/rowview/internal/keyset"
)

func testRow() Row {
	return Row{
		ID:        "a",
		Country:   "X",
		CreatedAt: "2024-01-01T00:00:00Z",
		Fields: map[string]any{
			"payload": `{"e-3":"foo","e-1":"bar"}`,
			"x0":      "cat",
			"x2":      "dog",
		},
	}
}

func TestRecordCoreFieldsWin(t *testing.T) {
	r := testRow()
	r.Fields["id"] = "shadowed"
	rec := r.Record()
	if rec["id"] != "a" {
		t.Errorf("id = %v, want a", rec["id"])
	}
	if len(rec) != 6 {
		t.Errorf("len(Record()) = %d, want 6", len(rec))
	}
}

func TestDiscoverKeysKeepsDocumentOrder(t *testing.T) {
	got := DiscoverKeys(`{"e-3":"foo","e-1":"bar","e-2":1}`)
	want := []string{"e-3", "e-1", "e-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverKeys() = %v, want %v", got, want)
	}
}

func TestDiscoverKeysMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"truncated json", `{"e-0":`},
		{"array", `["a","b"]`},
		{"scalar string", `"hello"`},
		{"number", 42},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiscoverKeys(tt.in); len(got) != 0 {
				t.Errorf("DiscoverKeys(%v) = %v, want none", tt.in, got)
			}
			if _, ok := DecodeBlob(tt.in); ok {
				t.Errorf("DecodeBlob(%v) ok = true, want false", tt.in)
			}
		})
	}
}

func TestDecodeBlobFromMap(t *testing.T) {
	in := map[string]any{"b": 1, "a": "x"}
	rec, ok := DecodeBlob(in)
	if !ok {
		t.Fatal("DecodeBlob(map) ok = false")
	}
	in["c"] = true
	if _, leaked := rec["c"]; leaked {
		t.Error("DecodeBlob should copy its input")
	}
	if got, want := DiscoverKeys(in), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverKeys(map) = %v, want %v", got, want)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "payload", want: FieldKind("payload", "payload")},
		{in: "extraData:*", want: RemainderKind("extraData")},
		{in: "meta:metadata", want: FieldKind("meta", "metadata")},
		{in: " collapsibleData ", want: FieldKind("collapsibleData", "collapsibleData")},
		{in: "", wantErr: true},
		{in: "name:", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseKind(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldKindBlobAndRaw(t *testing.T) {
	k := FieldKind("payload", "payload")
	r := testRow()

	blob := k.Blob(r, keyset.KeySet{})
	if blob["e-3"] != "foo" || blob["e-1"] != "bar" {
		t.Errorf("Blob() = %v", blob)
	}
	if got := k.Raw(r, keyset.KeySet{}); got != `{"e-3":"foo","e-1":"bar"}` {
		t.Errorf("Raw() = %q", got)
	}
	if got, want := k.Keys(r, keyset.KeySet{}), []string{"e-3", "e-1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestFieldKindMissingField(t *testing.T) {
	k := FieldKind("collapsibleData", "collapsibleData")
	r := testRow()
	if got := k.Blob(r, keyset.KeySet{}); len(got) != 0 {
		t.Errorf("Blob() = %v, want empty", got)
	}
	if got := k.Keys(r, keyset.KeySet{}); len(got) != 0 {
		t.Errorf("Keys() = %v, want empty", got)
	}
	if got := k.Raw(r, keyset.KeySet{}); got != "" {
		t.Errorf("Raw() = %q, want empty", got)
	}
}

func TestRemainderKind(t *testing.T) {
	k := RemainderKind("extraData")
	r := testRow()
	exclude := keyset.FromSlice(CoreKeys()).Union(keyset.Of("payload"))

	if got, want := k.Keys(r, exclude), []string{"x0", "x2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if got := k.Raw(r, exclude); got != `{"x0":"cat","x2":"dog"}` {
		t.Errorf("Raw() = %q", got)
	}
}
