package registry

import (
	"maps"
	"slices"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/semver"
	"go.trai.ch/zerr"
)

// packageDocument is the abbreviated package document served for the
// application/vnd.npm.install-v1+json media type. Only the fields pie uses
// are decoded.
type packageDocument struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]versionDocument `json:"versions"`
}

type versionDocument struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
	Dist         distDocument      `json:"dist"`
}

type distDocument struct {
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity"`
	Shasum    string `json:"shasum"`
}

// toDomain converts the document into strict metadata. Any version that
// cannot be converted makes the whole document malformed.
func (d *packageDocument) toDomain(name domain.PackageName) (*domain.PackageMetadata, error) {
	if d.Name != "" && d.Name != name.String() {
		return nil, zerr.With(zerr.Wrap(domain.ErrMalformedResponse, "document names another package"), "name", d.Name)
	}

	meta := &domain.PackageMetadata{
		Name:     name,
		Versions: make(map[string]domain.VersionMetadata, len(d.Versions)),
		DistTags: make(map[string]string, len(d.DistTags)),
	}
	maps.Copy(meta.DistTags, d.DistTags)

	for _, key := range slices.Sorted(maps.Keys(d.Versions)) {
		v, err := d.Versions[key].toDomain(name, key)
		if err != nil {
			return nil, zerr.With(err, "version", key)
		}
		meta.Versions[v.Version] = v
	}
	return meta, nil
}

func (d versionDocument) toDomain(name domain.PackageName, key string) (domain.VersionMetadata, error) {
	parsed, err := semver.Parse(key)
	if err != nil {
		return domain.VersionMetadata{}, domain.WithCause(domain.ErrMalformedResponse, err)
	}
	if d.Version != "" && d.Version != key {
		return domain.VersionMetadata{}, zerr.With(zerr.Wrap(domain.ErrMalformedResponse, "version entry disagrees with its key"), "entry", d.Version)
	}
	if d.Dist.Tarball == "" {
		return domain.VersionMetadata{}, zerr.Wrap(domain.ErrMalformedResponse, "missing tarball url")
	}

	integrity, err := d.Dist.integrity()
	if err != nil {
		return domain.VersionMetadata{}, domain.WithCause(domain.ErrMalformedResponse, err)
	}

	deps := make([]domain.VersionSpecifier, 0, len(d.Dependencies))
	for _, depName := range slices.Sorted(maps.Keys(d.Dependencies)) {
		parsedName, err := domain.ParsePackageName(depName)
		if err != nil {
			return domain.VersionMetadata{}, domain.WithCause(domain.ErrMalformedResponse, err)
		}
		deps = append(deps, domain.NewSpecifier(parsedName, d.Dependencies[depName]))
	}

	return domain.VersionMetadata{
		Name:         name,
		Version:      parsed.String(),
		Dependencies: deps,
		TarballURL:   d.Dist.Tarball,
		Integrity:    integrity,
	}, nil
}

// integrity prefers the SRI string and falls back to the legacy sha1 shasum.
func (d distDocument) integrity() (domain.Integrity, error) {
	if d.Integrity != "" {
		return domain.ParseIntegrity(d.Integrity)
	}
	if d.Shasum != "" {
		return domain.IntegrityFromShasum(d.Shasum)
	}
	return domain.Integrity{}, zerr.Wrap(domain.ErrInvalidIntegrity, "no integrity or shasum published")
}
