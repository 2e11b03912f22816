package settings

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nao1215/quietfeed/internal/catalog"
)

var (
	// ErrUnknownSite is returned when a site ID is not in the catalogue.
	ErrUnknownSite = errors.New("unknown site")

	// ErrUnknownFeature is returned when a feature ID is not defined for the site.
	ErrUnknownFeature = errors.New("unknown feature")
)

// Selection maps a site ID to its enabled feature IDs.
type Selection map[string][]string

// Clone returns a deep copy of the selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for site, ids := range s {
		out[site] = slices.Clone(ids)
	}
	return out
}

// Normalize returns a copy with unknown sites and features dropped,
// duplicates removed and every list in catalogue order. Sites left without
// features are omitted.
func (s Selection) Normalize() Selection {
	out := make(Selection, len(s))
	for site, ids := range s {
		if ordered := order(site, ids); len(ordered) > 0 {
			out[site] = ordered
		}
	}
	return out
}

// Validate reports the first site or feature not known to the catalogue.
func (s Selection) Validate() error {
	for _, site := range sortedSites(s) {
		if err := validate(site, s[site]); err != nil {
			return err
		}
	}
	return nil
}

// validate checks a site ID and its feature IDs against the catalogue.
func validate(site string, ids []string) error {
	if _, ok := catalog.LookupSite(site); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSite, site)
	}
	for _, id := range ids {
		if !catalog.HasFeature(site, id) {
			return fmt.Errorf("%w: %s/%s", ErrUnknownFeature, site, id)
		}
	}
	return nil
}

// order returns ids filtered to the site's features, in catalogue order.
func order(site string, ids []string) []string {
	var out []string
	for _, id := range catalog.FeatureIDs(site) {
		if slices.Contains(ids, id) {
			out = append(out, id)
		}
	}
	return out
}

// sortedSites returns the sites of s, catalogue sites first in catalogue
// order, then any others sorted by name.
func sortedSites(s Selection) []string {
	out := make([]string, 0, len(s))
	for _, id := range catalog.SiteIDs() {
		if _, ok := s[id]; ok {
			out = append(out, id)
		}
	}
	var rest []string
	for id := range s {
		if !slices.Contains(out, id) {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}
