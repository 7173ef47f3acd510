package appflow

const (
	ChannelDevelopment = "Development"
	ChannelProduction  = "Production"
)

type Build struct {
	Typename string `json:"__typename,omitempty"`
	ID       string `json:"id,omitempty"`
	Number   int64  `json:"number,omitempty"`
	JobID    int64  `json:"job_id,omitempty"`
	UUID     string `json:"uuid"`
	AppID    string `json:"app_id,omitempty"`
}

// Channel is a named deployment target. CurrentBuild is empty when no build
// is bound to it.
type Channel struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	CurrentBuild string `json:"current_build,omitempty"`
}

func (c Channel) Build() (string, bool) {
	return c.CurrentBuild, c.CurrentBuild != ""
}

// FindChannel returns the first channel with the given name.
func FindChannel(channels []Channel, name string) (Channel, bool) {
	for _, c := range channels {
		if c.Name == name {
			return c, true
		}
	}
	return Channel{}, false
}
