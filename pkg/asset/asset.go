// Package asset defines categories and identifier helpers for cached map
// images.
package asset

import (
	"fmt"
	"path"
	"strings"
)

// Category identifies the map type an image belongs to. Each category is a
// subfolder of the storage path on the backend.
type Category string

const (
	// Original holds the source images the maps were generated from.
	Original     Category = "original"
	Depth        Category = "depth"
	Canny        Category = "canny"
	Pose         Category = "pose"
	Segmentation Category = "segmentation"
	Lineart      Category = "lineart"
	OpenPose     Category = "openpose"
	Scribble     Category = "scribble"
	SoftEdge     Category = "softedge"
)

// Categories returns the fixed category enumeration in display order.
func Categories() []Category {
	return []Category{
		Original,
		Depth,
		Canny,
		Pose,
		Segmentation,
		Lineart,
		OpenPose,
		Scribble,
		SoftEdge,
	}
}

// ParseCategory reports whether raw names a known category.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range Categories() {
		if candidate == c {
			return candidate, true
		}
	}
	return "", false
}

// MustCategory parses the input and panics on error. Intended for tests.
func MustCategory(raw string) Category {
	c, ok := ParseCategory(raw)
	if !ok {
		panic(fmt.Sprintf("asset: unknown category %q", raw))
	}
	return c
}

func (c Category) String() string {
	return string(c)
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
	".bmp":  {},
}

// IsImage reports whether name has an image extension the backend lists.
func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// Asset is a single image within a category. Uniqueness inside a listing is
// (Category, Basename); the extension is carried but not part of identity.
type Asset struct {
	Category Category
	Name     string
}

// Parse splits id into an Asset. A leading path element is only treated as
// the category when it is part of the enumeration.
func Parse(id string) Asset {
	c, name := Split(id)
	return Asset{Category: c, Name: name}
}

// Basename is the TagStore key for the asset.
func (a Asset) Basename() string {
	return Basename(a.Name)
}

// Ext returns the filename extension including the dot.
func (a Asset) Ext() string {
	return path.Ext(a.Name)
}

// Path renders category/name, or just name if no category is known.
func (a Asset) Path() string {
	if a.Category == "" {
		return a.Name
	}
	return string(a.Category) + "/" + a.Name
}

// Split separates a `category/name.ext` identifier. If the prefix is not a
// known category, category is empty and name is the whole value.
func Split(id string) (Category, string) {
	id = strings.TrimSpace(id)
	idx := strings.Index(id, "/")
	if idx <= 0 {
		return "", id
	}
	if c, ok := ParseCategory(id[:idx]); ok {
		return c, id[idx+1:]
	}
	return "", id
}

// HasCategory reports whether id carries a known category prefix.
func HasCategory(id string) bool {
	c, _ := Split(id)
	return c != ""
}

// Basename strips any directory and the extension from id.
func Basename(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	if ext := path.Ext(id); ext != "" && ext != id {
		id = strings.TrimSuffix(id, ext)
	}
	return id
}

// Path returns name unchanged when it already carries a category prefix,
// otherwise category/name.
func Path(c Category, name string) string {
	if name == "" || HasCategory(name) || c == "" {
		return name
	}
	return string(c) + "/" + name
}
