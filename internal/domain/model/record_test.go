package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEventRecord_ExtractsAttributes(t *testing.T) {
	body := []byte(`{"specversion":"1.0","id":"e-1","type":"com.example.test","source":"/src","time":"2024-01-02T03:04:05Z","data":{"k":1}}`)

	rec, err := ParseEventRecord(body)
	if err != nil {
		t.Fatalf("ParseEventRecord: %v", err)
	}
	if rec.ID != "e-1" || rec.Type != "com.example.test" || rec.Source != "/src" || rec.SpecVersion != "1.0" {
		t.Errorf("unexpected attributes: %+v", rec)
	}
	if rec.Time.IsZero() || rec.Time.Year() != 2024 {
		t.Errorf("time = %v, want 2024-01-02T03:04:05Z", rec.Time)
	}
	if string(rec.Raw()) != string(body) {
		t.Errorf("raw = %s, want verbatim body", rec.Raw())
	}
}

func TestParseEventRecord_Rejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want error
	}{
		{"empty", "", ErrNonJSONBody},
		{"text", "hello there", ErrNonJSONBody},
		{"truncated", `{"type":`, ErrNonJSONBody},
		{"array", `[1,2,3]`, ErrNotAnObject},
		{"string", `"event"`, ErrNotAnObject},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEventRecord([]byte(tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if !IsClientInput(err) {
				t.Errorf("expected client input error, got %T", err)
			}
		})
	}
}

func TestEventRecord_JSONPassThrough(t *testing.T) {
	body := `{"id":"","type":"t","x-ext":"kept","data":[1,"two",null]}`
	rec, err := ParseEventRecord([]byte(body))
	if err != nil {
		t.Fatalf("ParseEventRecord: %v", err)
	}

	out, err := json.Marshal(map[string]any{"events": []EventRecord{rec}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"events":[` + body + `]}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}

	var back struct {
		Events []EventRecord `json:"events"`
	}
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.Events) != 1 || back.Events[0].Type != "t" {
		t.Errorf("round trip lost record: %+v", back.Events)
	}
}

func TestNamespaceValidate(t *testing.T) {
	if err := Namespace("").Validate(); err == nil {
		t.Error("empty namespace must be rejected")
	}
	if err := Namespace("any string / at all").Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&StorageError{Op: "append", Namespace: "ns", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("StorageError must unwrap to its cause")
	}
	if !IsStorage(err) || IsClientInput(err) {
		t.Error("classification mismatch")
	}
}
