// Package legacy reads the per-kind connection records kept before the unified source
// registry existed.
package legacy

// CloudServer is an old-style cloud server record.
type CloudServer struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	URL       string `yaml:"url" json:"url"`
	APIKey    string `yaml:"apiKey" json:"apiKey"`
	CreatedAt string `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// LANConnection is an old-style LAN peer record.
type LANConnection struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	SecretKey string `yaml:"secretKey" json:"secretKey"`
	CreatedAt string `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// Records is everything a legacy store holds.
type Records struct {
	CloudServers   []CloudServer   `yaml:"cloudServers"`
	LANConnections []LANConnection `yaml:"lanConnections"`
}

// Empty reports whether there is nothing to import.
func (r Records) Empty() bool {
	return len(r.CloudServers) == 0 && len(r.LANConnections) == 0
}
