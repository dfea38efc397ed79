package domain

import "time"

// LocalProviderName is the provider tag of the built-in password strategy.
const LocalProviderName = "Password"

// ResourceOwnerData is the canonical projection of provider-supplied profile
// attributes. It is informational only and never drives authorization
// decisions.
type ResourceOwnerData struct {
	ID          string            `bson:"id,omitempty" json:"id,omitempty"`
	Provider    string            `bson:"provider,omitempty" json:"provider,omitempty"`
	UID         string            `bson:"uid,omitempty" json:"uid,omitempty"`
	Nickname    string            `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Name        string            `bson:"name,omitempty" json:"name,omitempty"`
	FirstName   string            `bson:"first_name,omitempty" json:"firstName,omitempty"`
	LastName    string            `bson:"last_name,omitempty" json:"lastName,omitempty"`
	Email       string            `bson:"email,omitempty" json:"email,omitempty"`
	Location    string            `bson:"location,omitempty" json:"location,omitempty"`
	Description string            `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL    string            `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	URLs        map[string]string `bson:"urls,omitempty" json:"urls,omitempty"`
	Gender      string            `bson:"gender,omitempty" json:"gender,omitempty"`
	Locale      string            `bson:"locale,omitempty" json:"locale,omitempty"`
	Raw         map[string]any    `bson:"raw,omitempty" json:"-"`
}

// Profile is one durable identity record: at most one per
// (provider, resource owner id) pair.
type Profile struct {
	GUID            string            `bson:"guid" json:"guid"`
	Provider        string            `bson:"provider" json:"provider"`
	ResourceOwnerID string            `bson:"resource_owner_id" json:"resourceOwnerId"`
	PasswordHash    string            `bson:"password,omitempty" json:"-"`
	RefreshToken    string            `bson:"refresh_token,omitempty" json:"-"`
	OwnerData       ResourceOwnerData `bson:"resource_owner_data" json:"resourceOwnerData"`
	Enabled         bool              `bson:"enabled" json:"enabled"`
	LastUpdate      time.Time         `bson:"lastupdate" json:"lastUpdate"`
}

// IsLocal reports whether the profile authenticates via the local password
// store rather than a remote OAuth2 provider.
func (p *Profile) IsLocal() bool {
	return p.Provider == LocalProviderName
}
