package srs

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestQualityClamp(t *testing.T) {
	tests := []struct {
		in, want Quality
	}{
		{-5, 0}, {0, 0}, {3, 3}, {5, 5}, {6, 5}, {99, 5},
	}
	for _, tt := range tests {
		if got := tt.in.Clamp(); got != tt.want {
			t.Errorf("Quality(%d).Clamp() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestQualityFromFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want Quality
	}{
		{-0.5, 0},
		{math.Inf(-1), 0},
		{2.4, 2},
		{3.5, 4},
		{4.0, 4},
		{7.2, 5},
		{math.Inf(1), 5},
	}
	for _, tt := range tests {
		got, err := QualityFromFloat(tt.in)
		if err != nil {
			t.Errorf("QualityFromFloat(%v) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("QualityFromFloat(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if _, err := QualityFromFloat(math.NaN()); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("QualityFromFloat(NaN) err = %v, want ErrInvalidArgument", err)
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Quality
		wantErr bool
	}{
		{name: "integer", in: "4", want: 4},
		{name: "padded", in: " 2 ", want: 2},
		{name: "negative clamps", in: "-3", want: 0},
		{name: "large clamps", in: "12", want: 5},
		{name: "fraction rounds", in: "4.6", want: 5},
		{name: "beyond float64 clamps high", in: "1e400", want: 5},
		{name: "beyond float64 clamps low", in: "-1e400", want: 0},
		{name: "label", in: "good", want: Good},
		{name: "label mixed case", in: "Again", want: Again},
		{name: "NaN", in: "NaN", wantErr: true},
		{name: "garbage", in: "perfect", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuality(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("ParseQuality(%q) err = %v, want ErrInvalidArgument", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuality(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseQuality(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestQualityUnmarshalJSON(t *testing.T) {
	var body struct {
		Quality Quality `json:"quality"`
	}
	for in, want := range map[string]Quality{
		`{"quality": 4}`:      4,
		`{"quality": "easy"}`: Easy,
		`{"quality": "2"}`:    2,
		`{"quality": -1}`:     0,
	} {
		if err := json.Unmarshal([]byte(in), &body); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", in, err)
			continue
		}
		if body.Quality != want {
			t.Errorf("Unmarshal(%s) = %d, want %d", in, body.Quality, want)
		}
	}

	if err := json.Unmarshal([]byte(`{"quality": "NaN"}`), &body); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Unmarshal NaN err = %v, want ErrInvalidArgument", err)
	}
}

func TestQualityString(t *testing.T) {
	for q, want := range map[Quality]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy", 3: "3"} {
		if got := q.String(); got != want {
			t.Errorf("Quality(%d).String() = %q, want %q", int(q), got, want)
		}
	}
}
