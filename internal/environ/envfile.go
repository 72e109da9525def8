package environ

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/poe/pkg/types"
)

// templateMark stands in for "${" while godotenv parses a file, so ${NAME}
// placeholders reach Expand instead of godotenv's file-local expansion.
const templateMark = "__poe_template__{"

// readEnvFile parses the dotenv file at path. A ${NAME} placeholder in a
// value expands against the file's other variables first, then against
// lookup. Bare $NAME keeps godotenv's file-local expansion.
func readEnvFile(fs afero.Fs, path string, lookup func(string) (string, bool)) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file %s: %w: %w", path, types.ErrInvalidEnvFile, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w: %w", path, types.ErrInvalidEnvFile, err)
	}
	parsed, err := godotenv.Parse(bytes.NewReader(bytes.ReplaceAll(raw, []byte("${"), []byte(templateMark))))
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w: %w", path, types.ErrInvalidEnvFile, err)
	}

	own := make(map[string]string, len(parsed))
	for k, v := range parsed {
		own[k] = strings.ReplaceAll(v, templateMark, "${")
	}
	vars := make(map[string]string, len(own))
	active := make(map[string]bool)
	var resolve func(key string) string
	resolve = func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		if active[key] {
			return own[key]
		}
		active[key] = true
		v := Expand(own[key], func(name string) (string, bool) {
			if _, ok := own[name]; ok && name != key {
				return resolve(name), true
			}
			return lookup(name)
		})
		vars[key] = v
		return v
	}
	for k := range own {
		resolve(k)
	}
	return vars, nil
}
