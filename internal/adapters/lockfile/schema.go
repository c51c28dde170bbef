package lockfile

import (
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
)

// header is decoded first so that lockfiles of other schema versions can be
// recognized without understanding the rest of the document.
type header struct {
	LockfileVersion int `yaml:"lockfileVersion"`
}

// Document represents the structure of the pie-lock.yaml file.
type Document struct {
	LockfileVersion int                   `yaml:"lockfileVersion"`
	Roots           []RootDTO             `yaml:"roots"`
	Packages        map[string]PackageDTO `yaml:"packages"`
}

// RootDTO is a requested specifier and the package key it resolved to.
type RootDTO struct {
	Specifier string `yaml:"specifier"`
	Resolved  string `yaml:"resolved"`
}

// PackageDTO is one pinned package.
type PackageDTO struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Tarball      string            `yaml:"tarball"`
	Integrity    string            `yaml:"integrity"`
	Dependencies map[string]string `yaml:"dependencies,omitempty"`
}

func fromRecord(rec *domain.LockRecord) Document {
	doc := Document{
		LockfileVersion: rec.SchemaVersion,
		Roots:           make([]RootDTO, 0, len(rec.Roots)),
		Packages:        make(map[string]PackageDTO, len(rec.Packages)),
	}
	for _, root := range rec.Roots {
		doc.Roots = append(doc.Roots, RootDTO{Specifier: root.Specifier.String(), Resolved: root.Resolved})
	}
	for key, pkg := range rec.Packages {
		var deps map[string]string
		if len(pkg.Dependencies) > 0 {
			deps = make(map[string]string, len(pkg.Dependencies))
			for name, version := range pkg.Dependencies {
				deps[name.String()] = version
			}
		}
		doc.Packages[key] = PackageDTO{
			Name:         pkg.Name.String(),
			Version:      pkg.Version,
			Tarball:      pkg.TarballURL,
			Integrity:    pkg.Integrity.String(),
			Dependencies: deps,
		}
	}
	return doc
}

func (d *Document) toRecord() (*domain.LockRecord, error) {
	rec := &domain.LockRecord{
		SchemaVersion: d.LockfileVersion,
		Roots:         make([]domain.LockedRoot, 0, len(d.Roots)),
		Packages:      make(map[string]domain.LockedPackage, len(d.Packages)),
	}

	for _, root := range d.Roots {
		spec, err := domain.ParseSpecifier(root.Specifier)
		if err != nil {
			return nil, zerr.With(domain.WithCause(domain.ErrLockfileMalformed, err), "root", root.Specifier)
		}
		rec.Roots = append(rec.Roots, domain.LockedRoot{Specifier: spec, Resolved: root.Resolved})
	}

	for key, dto := range d.Packages {
		pkg, err := dto.toLocked()
		if err != nil {
			return nil, zerr.With(domain.WithCause(domain.ErrLockfileMalformed, err), "package", key)
		}
		rec.Packages[key] = pkg
	}
	return rec, nil
}

func (p PackageDTO) toLocked() (domain.LockedPackage, error) {
	name, err := domain.ParsePackageName(p.Name)
	if err != nil {
		return domain.LockedPackage{}, err
	}
	integrity, err := domain.ParseIntegrity(p.Integrity)
	if err != nil {
		return domain.LockedPackage{}, err
	}

	deps := make(map[domain.PackageName]string, len(p.Dependencies))
	for depName, version := range p.Dependencies {
		parsed, err := domain.ParsePackageName(depName)
		if err != nil {
			return domain.LockedPackage{}, err
		}
		deps[parsed] = version
	}

	return domain.LockedPackage{
		Name:         name,
		Version:      p.Version,
		TarballURL:   p.Tarball,
		Integrity:    integrity,
		Dependencies: deps,
	}, nil
}
