// Package util - Loading and pairing of map and image files.
package util

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the file name without its extension. Files are paired by Name.
	Name string
	// Data is the raw bytes of the image file.
	Data []byte
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true,
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile sorted by name, each containing the raw bytes of an image file.
// - error: Error if loading fails or two files share a name.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list images")
	}

	var images []ImageFile
	seen := make(map[string]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := filepath.Ext(file.Name())
		if !imageExtensions[strings.ToLower(ext)] {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ext)
		if prev, ok := seen[name]; ok {
			return nil, errors.Errorf("ambiguous image name %q: %s and %s", name, prev, file.Name())
		}
		seen[name] = file.Name()

		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read image")
		}
		images = append(images, ImageFile{Path: imgPath, Name: name, Data: data})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Name < images[j].Name
	})

	return images, nil
}

// Pair is a prediction and the reference it is scored against.
type Pair struct {
	Name       string
	Prediction ImageFile
	Reference  ImageFile
}

// PairImageFiles matches predictions to references by Name.
//
// Arguments:
// - predictions: The prediction files.
// - references: The reference files.
//
// Returns:
// - []Pair: The matched pairs, sorted by name.
// - []string: The names present on only one side, sorted.
func PairImageFiles(predictions, references []ImageFile) ([]Pair, []string) {
	refs := make(map[string]ImageFile, len(references))
	for _, r := range references {
		refs[r.Name] = r
	}

	var (
		pairs     []Pair
		unmatched []string
	)
	for _, p := range predictions {
		r, ok := refs[p.Name]
		if !ok {
			unmatched = append(unmatched, p.Name)
			continue
		}
		delete(refs, p.Name)
		pairs = append(pairs, Pair{Name: p.Name, Prediction: p, Reference: r})
	}
	for name := range refs {
		unmatched = append(unmatched, name)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	sort.Strings(unmatched)
	return pairs, unmatched
}

// LoadPairs loads two directories and pairs their files by name. Files without
// a counterpart are logged and left out.
//
// Arguments:
// - predictionDir: Directory of prediction maps (or model inputs).
// - referenceDir: Directory of reference maps.
//
// Returns:
// - []Pair: The matched pairs, sorted by name.
// - error: Error if a directory cannot be read or nothing pairs up.
func LoadPairs(predictionDir, referenceDir string) ([]Pair, error) {
	predictions, err := LoadDirectoryImageFiles(predictionDir)
	if err != nil {
		return nil, errors.Wrapf(err, "predictions %s", predictionDir)
	}
	references, err := LoadDirectoryImageFiles(referenceDir)
	if err != nil {
		return nil, errors.Wrapf(err, "references %s", referenceDir)
	}

	pairs, unmatched := PairImageFiles(predictions, references)
	for _, name := range unmatched {
		log.Printf("⚠️ No counterpart for %q, skipping", name)
	}
	if len(pairs) == 0 {
		return nil, errors.Errorf("no files in %s match %s", predictionDir, referenceDir)
	}
	return pairs, nil
}
