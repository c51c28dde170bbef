package domain

// VersionMetadata is the strict, immutable view of one published version.
// Dependencies are sorted by name.
type VersionMetadata struct {
	Name         PackageName
	Version      string
	Dependencies []VersionSpecifier
	TarballURL   string
	Integrity    Integrity
}

// Key returns the "name@version" identifier.
func (m VersionMetadata) Key() string {
	return PackageKey(m.Name, m.Version)
}

// PackageMetadata is everything the registry publishes for one package name.
type PackageMetadata struct {
	Name PackageName

	// Versions maps a version string to its manifest.
	Versions map[string]VersionMetadata

	// DistTags maps distribution tags such as "latest" to a version string.
	DistTags map[string]string
}

// StoreEntry is an extracted package tree inside the content store.
// The directory is owned by the store and must not be modified.
type StoreEntry struct {
	Integrity Integrity
	Path      string
}
