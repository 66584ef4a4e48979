package startup

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"shelter-media/internal/imageops"
	"shelter-media/internal/logging"
	"shelter-media/internal/media"
)

// PolicyFile is the layout of the policy TOML file:
//
//	[media]
//	allow_jpg = true
//	incoming_scale = "1024x1024"
//
//	[mime_types]
//	heic = "image/heic"
type PolicyFile struct {
	Media     media.Policy      `toml:"media"`
	MimeTypes map[string]string `toml:"mime_types"`
}

// LoadPolicy reads a policy file. Keys missing from the file keep their
// defaults; unknown keys are an error so typos do not go unnoticed. An empty
// path returns the defaults.
func LoadPolicy(path string) (media.Policy, map[string]string, error) {
	file := PolicyFile{Media: media.DefaultPolicy()}
	if path == "" {
		return file.Media, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return media.Policy{}, nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&file); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, e := range strict.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			return media.Policy{}, nil, fmt.Errorf("policy file %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
		return media.Policy{}, nil, fmt.Errorf("policy file %s: %w", path, err)
	}

	p := &file.Media
	if p.IncomingScale == "" {
		p.IncomingScale = imageops.DefaultSpec
	}
	if p.IncomingScale != imageops.NoScale {
		if normalized := imageops.NormalizeSpec(p.IncomingScale); normalized != p.IncomingScale {
			logging.Warn("  Invalid incoming_scale %q, using %s", p.IncomingScale, normalized)
			p.IncomingScale = normalized
		}
	}
	if p.AutoRemoveDocumentMedia && p.AutoRemoveDocumentMediaYears <= 0 {
		return media.Policy{}, nil, fmt.Errorf("policy file %s: auto_remove_document_media_years must be positive", path)
	}

	return file.Media, file.MimeTypes, nil
}
