package nn

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Checkpoint is a saved set of model parameters
type Checkpoint struct {
	Type    string       `json:"type"`
	Version int          `json:"version"`
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Params  []SavedParam `json:"params"`

	Optimizer map[string]interface{} `json:"optimizer,omitempty"` // Optimizer.GetState
}

// SavedParam stores one parameter with base64-encoded little-endian float32 data
type SavedParam struct {
	Name    string         `json:"name"`
	Shape   []int          `json:"shape"`
	Weights EncodedWeights `json:"weights"`
	Mask    string         `json:"mask,omitempty"` // base64 of one byte per entry
}

// EncodedWeights stores weights in base64-encoded JSON format
type EncodedWeights struct {
	Format string `json:"fmt"`
	Data   string `json:"data"`
}

const weightsFormat = "f32le-b64"

// NewCheckpoint captures params under the given run id and model name
func NewCheckpoint(id, model string, params []*Param) *Checkpoint {
	cp := &Checkpoint{Type: "pagnn-checkpoint", Version: 1, ID: id, Model: model}
	for _, p := range params {
		saved := SavedParam{
			Name:    p.Name,
			Shape:   p.Shape,
			Weights: EncodedWeights{Format: weightsFormat, Data: encodeFloat32(p.Data)},
		}
		if p.Mask != nil {
			raw := make([]byte, len(p.Mask))
			for i, m := range p.Mask {
				if m {
					raw[i] = 1
				}
			}
			saved.Mask = base64.StdEncoding.EncodeToString(raw)
		}
		cp.Params = append(cp.Params, saved)
	}
	return cp
}

// Restore copies saved values into params matched by name
func (cp *Checkpoint) Restore(params []*Param) error {
	byName := make(map[string]SavedParam, len(cp.Params))
	for _, sp := range cp.Params {
		byName[sp.Name] = sp
	}

	for _, p := range params {
		sp, ok := byName[p.Name]
		if !ok {
			return errors.Errorf("checkpoint has no param %q", p.Name)
		}
		if sp.Weights.Format != weightsFormat {
			return errors.Errorf("param %q: unsupported weights format %q", p.Name, sp.Weights.Format)
		}
		data, err := decodeFloat32(sp.Weights.Data)
		if err != nil {
			return errors.Wrapf(err, "param %q", p.Name)
		}
		if len(data) != len(p.Data) {
			return errors.Wrapf(ErrShape, "param %q: checkpoint %d, model %d", p.Name, len(data), len(p.Data))
		}
		copy(p.Data, data)

		if sp.Mask != "" {
			raw, err := base64.StdEncoding.DecodeString(sp.Mask)
			if err != nil {
				return errors.Wrapf(err, "param %q mask", p.Name)
			}
			if len(raw) != len(p.Data) {
				return errors.Wrapf(ErrShape, "param %q mask", p.Name)
			}
			p.Mask = make([]bool, len(raw))
			for i, b := range raw {
				p.Mask[i] = b != 0
			}
		}
	}
	return nil
}

// SaveCheckpoint writes params to path as JSON, creating parent directories
func SaveCheckpoint(path, id, model string, params []*Param) error {
	return NewCheckpoint(id, model, params).Save(path)
}

// Save writes the checkpoint to path as JSON, creating parent directories
func (cp *Checkpoint) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create checkpoint dir for %s", path)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal checkpoint")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write checkpoint %s", path)
}

// LoadCheckpoint reads a checkpoint from path and restores it into params
func LoadCheckpoint(path string, params []*Param) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read checkpoint %s", path)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrapf(err, "parse checkpoint %s", path)
	}
	if err := cp.Restore(params); err != nil {
		return nil, err
	}
	return &cp, nil
}

func encodeFloat32(values []float32) string {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeFloat32(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode weights")
	}
	if len(buf)%4 != 0 {
		return nil, errors.Errorf("weights payload of %d bytes is not a float32 array", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}
