package registry

import (
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// packument is the subset of registry metadata used to pick a version.
type packument struct {
	Name     string                      `json:"name"`
	DistTags map[string]string           `json:"dist-tags"`
	Versions map[string]packumentVersion `json:"versions"`
}

type packumentVersion struct {
	Version string `json:"version"`
	Dist    struct {
		Tarball   string `json:"tarball"`
		Integrity string `json:"integrity"`
	} `json:"dist"`
}

// localManifest is the part of package.json read during local lookup.
type localManifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func parseLocalManifest(data []byte) (localManifest, error) {
	var m localManifest
	err := json.Unmarshal(data, &m)
	return m, err
}

// selectVersion picks the version of meta that satisfies requested: an
// empty request or "latest" is the latest tag, then dist-tags, exact
// versions, and finally the greatest release matching a range.
func selectVersion(meta *packument, requested string) (string, bool) {
	if requested == "" {
		requested = "latest"
	}
	if v, ok := meta.DistTags[requested]; ok {
		if _, exists := meta.Versions[v]; exists {
			return v, true
		}
	}
	if _, ok := meta.Versions[requested]; ok {
		return requested, true
	}

	versions := make([]string, 0, len(meta.Versions))
	for v := range meta.Versions {
		versions = append(versions, v)
	}
	return greatestMatch(versions, requested)
}

// greatestMatch returns the greatest version satisfying requested.
func greatestMatch(versions []string, requested string) (string, bool) {
	var matches []string
	for _, v := range versions {
		if satisfies(v, requested) {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool {
		return semver.Compare(canonical(matches[i]), canonical(matches[j])) > 0
	})
	return matches[0], true
}

// satisfies reports whether version matches requested. Supported forms are
// an exact version, a partial version ("1", "1.2"), a caret range and a
// tilde range. Prereleases only match exactly.
func satisfies(version, requested string) bool {
	if requested == "" || requested == "latest" || requested == version {
		return true
	}
	v := canonical(version)
	if !semver.IsValid(v) || semver.Prerelease(v) != "" {
		return false
	}

	switch {
	case strings.HasPrefix(requested, "^"):
		r := canonical(requested[1:])
		return semver.IsValid(r) && semver.Major(v) == semver.Major(r) && semver.Compare(v, r) >= 0
	case strings.HasPrefix(requested, "~"):
		r := canonical(requested[1:])
		return semver.IsValid(r) && semver.MajorMinor(v) == semver.MajorMinor(r) && semver.Compare(v, r) >= 0
	}

	r := canonical(strings.TrimPrefix(requested, "="))
	if !semver.IsValid(r) {
		return false
	}
	switch strings.Count(strings.TrimPrefix(r, "v"), ".") {
	case 0:
		return semver.Major(v) == r
	case 1:
		return semver.MajorMinor(v) == r
	}
	return semver.Compare(v, r) == 0
}

// canonical prefixes v for golang.org/x/mod/semver.
func canonical(version string) string {
	version = strings.TrimSpace(version)
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// isExact reports whether requested names a single full version.
func isExact(requested string) bool {
	v := canonical(requested)
	return semver.IsValid(v) && strings.Count(strings.TrimPrefix(v, "v"), ".") >= 2 && !strings.ContainsAny(requested, "^~")
}
