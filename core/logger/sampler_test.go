package logger

import "testing"

func TestParseSample(t *testing.T) {
	cases := map[string]sampleRatio{
		"":      defaultSample,
		"1/10":  {keep: 1, of: 10},
		" 3/4 ": {keep: 3, of: 4},
		"20":    {keep: 1, of: 20},
		"0":     {},
		"OFF":   {},
		"all":   {},
		"x/10":  defaultSample,
		"-5":    defaultSample,
		"0/10":  defaultSample,
	}
	for spec, want := range cases {
		if got := parseSample(spec); got != want {
			t.Fatalf("parseSample(%q) = %+v, want %+v", spec, got, want)
		}
	}
}

func TestUpdateSamplerKeepsRatio(t *testing.T) {
	s := newUpdateSampler(sampleRatio{keep: 2, of: 5})
	kept := 0
	for i := 0; i < 50; i++ {
		if s.Allow() {
			kept++
		}
	}
	if kept != 20 {
		t.Fatalf("kept %d of 50, want 20", kept)
	}

	s.Set(sampleRatio{})
	for i := 0; i < 10; i++ {
		if !s.Allow() {
			t.Fatal("zero ratio must keep every record")
		}
	}

	s.Set(sampleRatio{keep: 9, of: 3})
	for i := 0; i < 6; i++ {
		if !s.Allow() {
			t.Fatal("keep above of is clamped to keep everything")
		}
	}
}
