package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// defaultSample keeps one raw-update debug record in fifty.
var defaultSample = sampleRatio{keep: 1, of: 50}

// sampleRatio keeps `keep` events out of every `of`. The zero value keeps everything.
type sampleRatio struct {
	keep, of uint64
}

// updateSampler thins high-volume debug records such as raw update dumps.
type updateSampler struct {
	ratio atomic.Pointer[sampleRatio]
	seen  atomic.Uint64
}

func newUpdateSampler(r sampleRatio) *updateSampler {
	s := &updateSampler{}
	s.Set(r)
	return s
}

func (s *updateSampler) Set(r sampleRatio) {
	if r.keep > r.of {
		r.keep = r.of
	}
	s.ratio.Store(&r)
	s.seen.Store(0)
}

func (s *updateSampler) Allow() bool {
	r := s.ratio.Load()
	if r == nil || r.of == 0 {
		return true
	}
	n := s.seen.Add(1) - 1
	return n%r.of < r.keep
}

// parseSample reads logging.debug_sample: "k/n", "n" (one in n), or "0", "off" and
// "all" to keep every record. Anything else falls back to defaultSample.
func parseSample(spec string) sampleRatio {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "":
		return defaultSample
	case "0", "off", "all":
		return sampleRatio{}
	}
	keepPart, ofPart, hasSlash := strings.Cut(spec, "/")
	if !hasSlash {
		keepPart, ofPart = "1", spec
	}
	keep, err1 := strconv.ParseUint(strings.TrimSpace(keepPart), 10, 64)
	of, err2 := strconv.ParseUint(strings.TrimSpace(ofPart), 10, 64)
	if err1 != nil || err2 != nil || keep == 0 || of == 0 {
		return defaultSample
	}
	return sampleRatio{keep: keep, of: of}
}
