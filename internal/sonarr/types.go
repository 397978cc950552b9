package sonarr

// Series is a downstream series record.
type Series struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	TVDBID          int64            `json:"tvdbId"`
	Monitored       bool             `json:"monitored"`
	Tags            []int64          `json:"tags"`
	AlternateTitles []alternateTitle `json:"alternateTitles"`
}

type alternateTitle struct {
	Title string `json:"title"`
}

// Episode is a downstream episode record.
type Episode struct {
	ID            int64 `json:"id"`
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	Monitored     bool  `json:"monitored"`
	HasFile       bool  `json:"hasFile"`
}

// EpisodeState summarizes what the downstream consumer knows about one
// episode.
type EpisodeState struct {
	Exists    bool
	Monitored bool
	HasFile   bool
}

type tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

type commandRequest struct {
	Name     string `json:"name"`
	SeriesID int64  `json:"seriesId,omitempty"`
	Path     string `json:"path,omitempty"`
}
