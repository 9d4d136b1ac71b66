package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// stem strips the volumetric file extension from a filename, treating
// ".nii.gz" as a single extension so "Liver.nii.gz" and "Liver.nii" both
// map to the organ name "Liver".
func stem(filename string) string {
	base := filepath.Base(filename)
	if strings.HasSuffix(base, ".nii.gz") {
		return strings.TrimSuffix(base, ".nii.gz")
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// listMaskFiles returns the regular files of a per-organ mask directory
// keyed by organ name (filename stem), plus the stems in sorted order for
// deterministic iteration.
func listMaskFiles(dir string) (map[string]string, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read organ directory: %v", err)
	}
	files := make(map[string]string)
	var stems []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		s := stem(e.Name())
		files[s] = filepath.Join(dir, e.Name())
		stems = append(stems, s)
	}
	sort.Strings(stems)
	return files, stems, nil
}
