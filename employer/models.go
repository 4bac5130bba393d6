package employer

import "time"

// Profile is an employer known to the verification directory.
type Profile struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Fein      string    `yaml:"fein"`
	Verified  bool      `yaml:"verified"`
	CreatedAt time.Time `yaml:"created_at"`
}
