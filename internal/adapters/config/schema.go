package config

// Document is the structure of the .pie.yaml configuration file.
// Pointer fields distinguish an absent key from a zero value.
type Document struct {
	Registry    *string     `yaml:"registry"`
	Store       *string     `yaml:"store"`
	Concurrency *int        `yaml:"concurrency"`
	Lockfile    *string     `yaml:"lockfile"`
	Network     *NetworkDTO `yaml:"network"`
}

// NetworkDTO holds the retry and timeout settings of the network section.
type NetworkDTO struct {
	Retries *int    `yaml:"retries"`
	Backoff *string `yaml:"backoff"`
	Timeout *string `yaml:"timeout"`
}
