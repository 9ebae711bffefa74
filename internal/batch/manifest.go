package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ManifestEntry represents one attempted file in the output manifest.
type ManifestEntry struct {
	Source    string `json:"source"`
	Output    string `json:"output,omitempty"`
	Bytes     int    `json:"bytes"`
	Format    string `json:"format,omitempty"`
	Converted bool   `json:"converted"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// WriteManifest writes manifest.json describing results. Paths are stored
// relative to inputDir and outputDir with forward slashes.
func WriteManifest(path, inputDir, outputDir string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		entries[i] = ManifestEntry{
			Source:    relSlash(inputDir, r.Path),
			Bytes:     r.Bytes,
			Format:    r.RealExt,
			Converted: r.Converted,
			OK:        r.Success,
			Error:     r.Error,
		}
		if r.Output != "" {
			entries[i].Output = relSlash(outputDir, r.Output)
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func relSlash(base, path string) string {
	if base != "" {
		if rel, err := filepath.Rel(base, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
