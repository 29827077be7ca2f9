package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMetadata_PreservesInsertionOrder(t *testing.T) {
	m := NewMetadata()
	m.Set("FILE_NAME", "a.jpg")
	m.Set("ASPECT_RATIO", "1.78")
	m.Set("EXIF_MAKE", "Canon")
	m.Set("FILE_NAME", "b.jpg")

	keys := m.Keys()
	expected := []string{"FILE_NAME", "ASPECT_RATIO", "EXIF_MAKE"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected %d keys, got %d", len(expected), len(keys))
	}
	for i, k := range expected {
		if keys[i] != k {
			t.Errorf("Expected key %d to be %s, got %s", i, k, keys[i])
		}
	}
	if m.Value("FILE_NAME") != "b.jpg" {
		t.Errorf("Expected overwritten value b.jpg, got %s", m.Value("FILE_NAME"))
	}
}

func TestMetadata_MarshalIndent(t *testing.T) {
	m := NewMetadata()
	m.Set("ZETA", "1")
	m.Set("ALPHA", "2")

	data, err := m.MarshalIndent()
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	expected := "{\n  \"ZETA\": \"1\",\n  \"ALPHA\": \"2\"\n}"
	if string(data) != expected {
		t.Errorf("Expected %q, got %q", expected, string(data))
	}
}

func TestMetadata_RoundTripThroughHistoryRecord(t *testing.T) {
	m := NewMetadata()
	m.Set("FILE_NAME", "photo.jpg")
	m.Set("TOTAL_PIXELS", "2,073,600")
	m.Set("GOOGLE_MAPS_LINK", "https://maps.google.com/?q=40.446111,-79.982222")

	record := HistoryRecord{ID: 1700000000000, Timestamp: "2023-11-14T22:13:20.000Z", Metadata: m}
	data, err := json.MarshalIndent([]HistoryRecord{record}, "", "  ")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"imageUrl": null`) {
		t.Errorf("Expected null imageUrl in %s", data)
	}

	var decoded []HistoryRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(decoded))
	}
	if !decoded[0].Metadata.Equal(m) {
		t.Errorf("Expected equal metadata after round trip, got keys %v", decoded[0].Metadata.Keys())
	}
}

func TestMetadata_UnmarshalNonStringValues(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"A": 12, "B": "x", "C": true}`), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Value("A") != "12" || m.Value("B") != "x" || m.Value("C") != "true" {
		t.Errorf("Unexpected values: A=%q B=%q C=%q", m.Value("A"), m.Value("B"), m.Value("C"))
	}
}

func TestMetadata_UnmarshalRejectsArray(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`["A"]`), &m); err == nil {
		t.Error("Expected error for JSON array")
	}
}

func TestTagValue(t *testing.T) {
	tests := []struct {
		name      string
		value     TagValue
		wantEmpty bool
		wantStr   string
	}{
		{"text", TextValue("Canon"), false, "Canon"},
		{"empty text", TextValue(""), true, ""},
		{"zero number", NumberValue(0), true, "0"},
		{"number", NumberValue(72), false, "72"},
		{"triple", NumberValue(40, 26, 46.5), false, "40,26,46.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.IsEmpty(); got != tt.wantEmpty {
				t.Errorf("Expected IsEmpty %v, got %v", tt.wantEmpty, got)
			}
			if got := tt.value.String(); got != tt.wantStr {
				t.Errorf("Expected %q, got %q", tt.wantStr, got)
			}
		})
	}
}

func TestMetadata_EqualNil(t *testing.T) {
	filled := NewMetadata()
	filled.Set("FILE_NAME", "a.png")

	tests := []struct {
		name  string
		a, b  *Metadata
		equal bool
	}{
		{"both nil", nil, nil, true},
		{"nil and empty", nil, NewMetadata(), true},
		{"empty and nil", NewMetadata(), nil, true},
		{"nil and filled", nil, filled, false},
		{"filled and nil", filled, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Expected %v, got %v", tt.equal, got)
			}
		})
	}
}
