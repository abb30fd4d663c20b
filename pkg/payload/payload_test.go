package payload

import (
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	c := JSON{}

	data, err := c.Marshal(map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// JSON numbers decode as float64.
	if got["x"] != float64(1) {
		t.Errorf("got[x] = %v (%T), want 1", got["x"], got["x"])
	}
}

func TestCBORRoundTrip(t *testing.T) {
	c := CBOR{}

	type sample struct {
		Topic string `cbor:"1,keyasint"`
		Value int64  `cbor:"2,keyasint"`
	}

	data, err := c.Marshal(sample{Topic: "t", Value: 42})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got sample
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Topic != "t" || got.Value != 42 {
		t.Errorf("got %+v, want {t 42}", got)
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: "json"},
		{name: "json", want: "json"},
		{name: "cbor", want: "cbor"},
		{name: "xml", wantErr: true},
	}

	for _, tt := range tests {
		c, err := ByName(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ByName(%q) should fail", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("ByName(%q) failed: %v", tt.name, err)
			continue
		}
		if c.Name() != tt.want {
			t.Errorf("ByName(%q).Name() = %q, want %q", tt.name, c.Name(), tt.want)
		}
	}
}
