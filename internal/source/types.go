package source

// ServerState is one status snapshot as reported by the game server's
// status endpoint.
//
// Absent fields keep their zero value except Address and Hostname, which
// normalize to "Unknown" so the card never renders an empty headline.
type ServerState struct {
	Hostname   string   `json:"hostname"`
	Map        string   `json:"map"`
	Address    string   `json:"address"`
	Humans     int      `json:"player_count"`
	MaxPlayers int      `json:"max_players"`
	Bots       int      `json:"bot_count"`
	Players    []Player `json:"players"`
}

// Player is one connected player. Time is seconds since connect.
// Players still connecting have an empty Name.
type Player struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Time  int    `json:"time"`
}

func (s *ServerState) normalize() {
	if s.Hostname == "" {
		s.Hostname = "Unknown"
	}
	if s.Address == "" {
		s.Address = "Unknown"
	}
	if s.Humans < 0 {
		s.Humans = 0
	}
	if s.MaxPlayers < 0 {
		s.MaxPlayers = 0
	}
	if s.Bots < 0 {
		s.Bots = 0
	}
}
