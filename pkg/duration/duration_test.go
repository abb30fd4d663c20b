package duration

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestYAMLUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{name: "string", input: `interval: 1m30s`, want: 90 * time.Second},
		{name: "integer seconds", input: `interval: 45`, want: 45 * time.Second},
		{name: "fractional seconds", input: `interval: 1.5`, want: 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg struct {
				Interval Duration `yaml:"interval"`
			}
			if err := yaml.Unmarshal([]byte(tt.input), &cfg); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if cfg.Interval.Std() != tt.want {
				t.Errorf("Interval = %v, want %v", cfg.Interval.Std(), tt.want)
			}
		})
	}
}

func TestYAMLUnmarshalInvalid(t *testing.T) {
	var cfg struct {
		Interval Duration `yaml:"interval"`
	}
	if err := yaml.Unmarshal([]byte(`interval: fast`), &cfg); err == nil {
		t.Error("invalid duration string should fail")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	type cfg struct {
		Interval Duration `yaml:"interval"`
	}

	data, err := yaml.Marshal(cfg{Interval: Duration(30 * time.Second)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got cfg
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Interval.Std() != 30*time.Second {
		t.Errorf("round trip = %v, want 30s", got.Interval.Std())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type cfg struct {
		Timeout Duration `json:"timeout"`
	}

	data, err := json.Marshal(cfg{Timeout: Duration(10 * time.Second)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"timeout":"10s"}` {
		t.Errorf("Marshal = %s, want {\"timeout\":\"10s\"}", data)
	}

	var got cfg
	if err := json.Unmarshal([]byte(`{"timeout": 2.5}`), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Timeout.Std() != 2500*time.Millisecond {
		t.Errorf("Timeout = %v, want 2.5s", got.Timeout.Std())
	}
}
