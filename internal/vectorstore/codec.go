package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/hyperjump/vecsync/internal/models"
)

// entry layout: vector length (4), vector (len*4 bytes, little endian float32), metadata JSON.
func encodeEntry(vector []float32, md models.Metadata) ([]byte, error) {
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	out := make([]byte, 4, 4+len(vector)*4+len(mdJSON))
	binary.LittleEndian.PutUint32(out, uint32(len(vector)))
	out = append(out, float32SliceToBytes(vector)...)
	return append(out, mdJSON...), nil
}

func decodeEntry(b []byte) ([]float32, models.Metadata, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("entry too short: %d bytes", len(b))
	}
	n := int(binary.LittleEndian.Uint32(b))
	end := 4 + n*4
	if len(b) < end {
		return nil, nil, fmt.Errorf("entry truncated: want %d vector bytes, have %d", n*4, len(b)-4)
	}
	vec := bytesToFloat32Slice(b[4:end])
	md, err := decodeMetadata(b[end:])
	if err != nil {
		return nil, nil, err
	}
	return vec, md, nil
}

func decodeMetadata(b []byte) (models.Metadata, error) {
	if len(b) == 0 {
		return models.Metadata{}, nil
	}
	var md models.Metadata
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if md == nil {
		md = models.Metadata{}
	}
	return md, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

func marshalMetadata(md models.Metadata) (string, error) {
	if md == nil {
		md = models.Metadata{}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}
