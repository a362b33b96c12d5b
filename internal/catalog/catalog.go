// Package catalog derives the structured portal view from a flat store
// listing. It performs no I/O: the builder is a pure transform over one
// listing snapshot, rebuilt fresh on every read and never cached.
package catalog

import (
	"sort"

	"github.com/pubfiles/pubfiles/internal/blob"
	"github.com/pubfiles/pubfiles/internal/pathname"
)

// FileRecord is one stored document decorated with its derived identity.
// Pathname is always reconstructible as Compose(Category, Name).
type FileRecord struct {
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	Pathname   string `json:"pathname"`
	Locator    string `json:"url"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploadedAt"`
}

// Group is one display bucket of the catalog. Category is "" for the
// uncategorized bucket.
type Group struct {
	Category string       `json:"category,omitempty"`
	Files    []FileRecord `json:"files"`
}

// Catalog is the full derived view for one read.
type Catalog struct {
	Files      []FileRecord `json:"files"`
	Categories []string     `json:"categories"`
	Groups     []Group      `json:"groups"`
}

// Build derives the catalog from a store listing. Files keeps the
// listing order; Categories is the sorted unique set of non-empty
// categories; Groups puts the uncategorized bucket first, the remaining
// categories in lexicographic order, and sorts each bucket's files by
// name. The group ordering is a user-facing contract.
func Build(listing []blob.ObjectInfo) Catalog {
	files := make([]FileRecord, 0, len(listing))
	byCategory := make(map[string][]FileRecord)

	for _, obj := range listing {
		cat, name := pathname.Decompose(obj.Pathname)
		rec := FileRecord{
			Name:       name,
			Category:   cat,
			Pathname:   obj.Pathname,
			Locator:    obj.Locator,
			Size:       obj.Size,
			UploadedAt: obj.UploadedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		}
		files = append(files, rec)
		byCategory[cat] = append(byCategory[cat], rec)
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		if cat != "" {
			categories = append(categories, cat)
		}
	}
	sort.Strings(categories)

	groups := make([]Group, 0, len(byCategory))
	if bucket, ok := byCategory[""]; ok {
		groups = append(groups, Group{Category: "", Files: sortByName(bucket)})
	}
	for _, cat := range categories {
		groups = append(groups, Group{Category: cat, Files: sortByName(byCategory[cat])})
	}

	return Catalog{
		Files:      files,
		Categories: categories,
		Groups:     groups,
	}
}

func sortByName(files []FileRecord) []FileRecord {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files
}
