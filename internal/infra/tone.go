package infra

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// Gong envelope: a low sine with a sharp attack and a long exponential decay.
const (
	gongFrequency  = 110.0
	gongPeakGain   = 0.5
	gongFloorGain  = 0.01
	gongAttack     = 50 * time.Millisecond
	gongDecayEnd   = 3 * time.Second
	gongLength     = 3100 * time.Millisecond
	gongSampleRate = 22050
)

// gongGain returns the envelope gain t seconds after the start.
func gongGain(t float64) float64 {
	attack := gongAttack.Seconds()
	if t < attack {
		return gongPeakGain * t / attack
	}
	end := gongDecayEnd.Seconds()
	if t >= end {
		return gongFloorGain
	}
	progress := (t - attack) / (end - attack)
	return gongPeakGain * math.Pow(gongFloorGain/gongPeakGain, progress)
}

// GongSamples renders the gong as signed 16-bit mono samples.
func GongSamples(sampleRate int) []int16 {
	n := int(gongLength.Seconds() * float64(sampleRate))
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		v := gongGain(t) * math.Sin(2*math.Pi*gongFrequency*t)
		samples[i] = int16(v * math.MaxInt16)
	}
	return samples
}

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// GongWAV returns the gong as a PCM WAV file.
func GongWAV() []byte {
	samples := GongSamples(gongSampleRate)
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    gongSampleRate,
		ByteRate:      gongSampleRate * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	var buf bytes.Buffer
	buf.Grow(44 + int(dataSize))
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, header)
	_ = binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
