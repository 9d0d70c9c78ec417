package questions

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrMalformed marks a question bank that exists but cannot be used.
var ErrMalformed = errors.New("malformed question bank")

// Load reads the question bank from a JSON or YAML file.
//
// A blank path or a missing file yields an empty bank and no error. Any other
// failure yields an empty bank together with an error wrapping ErrMalformed, so
// callers can warn and carry on with generated questions only.
func Load(path string) (Bank, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Bank{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Bank{}, nil
		}
		return Bank{}, fmt.Errorf("%w: reading %s: %v", ErrMalformed, path, err)
	}

	bank, err := Parse(data)
	if err != nil {
		return Bank{}, fmt.Errorf("%s: %w", path, err)
	}

	return bank, nil
}

// Parse decodes raw question bank content. JSON is accepted as a YAML subset.
func Parse(data []byte) (Bank, error) {
	if strings.TrimSpace(string(data)) == "" {
		return Bank{}, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Bank{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var decoded map[string][]Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &decoded,
		TagName: "mapstructure",
	})
	if err != nil {
		return Bank{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := decoder.Decode(raw); err != nil {
		return Bank{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	bank := make(Bank, len(decoded))
	for position, records := range decoded {
		position = strings.TrimSpace(position)
		if position == "" {
			continue
		}

		for _, record := range records {
			record.Question = strings.TrimSpace(record.Question)
			if record.Question == "" {
				continue
			}
			record.Answer = strings.TrimSpace(record.Answer)
			// Everything that comes from the bank is curated.
			record.Source = SourcePredefined
			bank[position] = append(bank[position], record)
		}
	}

	return bank, nil
}
