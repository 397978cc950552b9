package metadata

import "time"

// Episode is one canonical episode as reported by the metadata source.
// AirDate is zero when the source has no air date for the episode.
type Episode struct {
	Season   int
	Episode  int
	Title    string
	Synopsis string
	AirDate  time.Time
}

// loginRequest is the TVDB v4 login payload.
type loginRequest struct {
	APIKey string `json:"apikey"`
}

type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type episodesResponse struct {
	Data struct {
		Episodes []episodeData `json:"episodes"`
	} `json:"data"`
}

type episodeData struct {
	SeasonNumber int    `json:"seasonNumber"`
	Number       int    `json:"number"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	Aired        string `json:"aired"` // "2006-01-02" or empty
}

type seriesExtendedResponse struct {
	Data struct {
		Name    string `json:"name"`
		Aliases []struct {
			Language string `json:"language"`
			Name     string `json:"name"`
		} `json:"aliases"`
	} `json:"data"`
}
