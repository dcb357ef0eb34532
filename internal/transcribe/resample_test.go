package transcribe

import (
	"reflect"
	"testing"
)

func TestResample(t *testing.T) {
	tests := []struct {
		name    string
		in      []float32
		src     int
		dst     int
		wantLen int
	}{
		{"downsample 48k to 16k", make([]float32, 48000), 48000, 16000, 16000},
		{"downsample 44.1k to 16k", make([]float32, 44100), 44100, 16000, 16000},
		{"upsample 8k to 16k", make([]float32, 8000), 8000, 16000, 16000},
		{"empty input", nil, 48000, 16000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(tt.in, tt.src, tt.dst)
			if len(got) != tt.wantLen {
				t.Errorf("len(Resample()) = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestResampleSameRate(t *testing.T) {
	in := []float32{1, 2, 3}
	got := Resample(in, 16000, 16000)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("Resample() at equal rates = %v, want input unchanged", got)
	}
}

func TestResamplePicksNearestSample(t *testing.T) {
	in := []float32{0, 1, 2, 3, 4, 5}
	got := Resample(in, 6, 2)
	want := []float32{0, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resample() = %v, want %v", got, want)
	}
}

func TestResampleDeterministic(t *testing.T) {
	in := make([]float32, 44100)
	for i := range in {
		in[i] = float32(i%100) / 100
	}
	first := Resample(in, 44100, 16000)
	second := Resample(in, 44100, 16000)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated Resample() calls differ")
	}
}

func TestDownmixMono(t *testing.T) {
	stereo := []float32{0, 1, 0.5, 0.5, 1, 0}
	got := downmixMono(stereo, 2)
	want := []float32{0.5, 0.5, 0.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("downmixMono() = %v, want %v", got, want)
	}

	mono := []float32{1, 2, 3}
	if !reflect.DeepEqual(downmixMono(mono, 1), mono) {
		t.Error("downmixMono() on mono input should be unchanged")
	}
}
