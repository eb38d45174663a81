package probe

import "testing"

func TestParseRational(t *testing.T) {
	cases := map[string]float64{
		"30/1":    30,
		"24000/1001": 23.976023976023978,
		"":        0,
		"25":      25,
		"30/0":    0,
	}
	for in, want := range cases {
		got := parseRational(in)
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("parseRational(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_DefaultsBinary(t *testing.T) {
	p := New("")
	if p.BinaryPath != "ffprobe" {
		t.Errorf("expected default binary path ffprobe, got %q", p.BinaryPath)
	}
}
