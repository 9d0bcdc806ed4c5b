package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// pcmScale maps float samples to the signed 16-bit range and back.
const pcmScale = 32768

// EncodePCM16 clamps each sample to [-1, 1], scales it to the signed 16-bit
// range and writes it little-endian. The result is 2*len(samples) bytes.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

// EncodeChunk encodes samples as 16-bit PCM and wraps the base64 text in a
// [Chunk] labelled [InputMIMEType].
func EncodeChunk(samples []float32) Chunk {
	return Chunk{
		Data:     base64.StdEncoding.EncodeToString(EncodePCM16(samples)),
		MIMEType: InputMIMEType,
	}
}

// DecodeBase64 returns the raw bytes of a base64 audio payload.
func DecodeBase64(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w", err)
	}
	return raw, nil
}

// DecodeToBuffer converts interleaved 16-bit little-endian PCM into a
// [Buffer] with the given sample rate and channel count. Each sample is
// divided by 32768. A trailing partial frame is ignored; callers are expected
// to supply whole frames.
func DecodeToBuffer(pcm []byte, sampleRate, channels int) *Buffer {
	if channels <= 0 {
		channels = 1
	}
	frames := len(pcm) / 2 / channels
	buf := NewBuffer(sampleRate, channels, frames)
	for ch := range channels {
		plane := buf.Data[ch]
		for i := range frames {
			off := (i*channels + ch) * 2
			plane[i] = float32(int16(binary.LittleEndian.Uint16(pcm[off:]))) / pcmScale
		}
	}
	return buf
}

// PCM16ToFloat32 converts mono 16-bit little-endian PCM into float samples.
func PCM16ToFloat32(pcm []byte) []float32 {
	return DecodeToBuffer(pcm, 0, 1).Data[0]
}

func floatToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	v := math.Round(float64(s) * pcmScale)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return int16(v)
}
